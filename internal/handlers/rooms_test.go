package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/mocks"
)

func setupRoomRouter(handler *RoomHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/rooms/:room_id/participants", handler.AddParticipant)
	r.GET("/rooms/:room_id/participants", handler.Participants)
	return r
}

func TestAddParticipantSuccess(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(NewRoomHandler(repo))

	repo.On("AddParticipant", mock.Anything, "r1", "u1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/r1/participants", bytes.NewBufferString(`{"user_id":"u1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	repo.AssertExpectations(t)
}

func TestAddParticipantMissingUserID(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(NewRoomHandler(repo))

	req := httptest.NewRequest(http.MethodPost, "/rooms/r1/participants", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestListParticipants(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(NewRoomHandler(repo))

	repo.On("Participants", mock.Anything, "r1").Return([]string{"u1", "u2"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/r1/participants", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"room_id":"r1","participants":["u1","u2"]}`, rec.Body.String())
}
