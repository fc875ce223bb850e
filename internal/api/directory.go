package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/repo"
)

// DirectoryAdmin manages users, groups and memberships.
type DirectoryAdmin interface {
	CreateUser(ctx context.Context, u model.User) (int64, error)
	CreateGroup(ctx context.Context, g model.Group) (int64, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
	DeleteGroup(ctx context.Context, groupID int64) error
	GroupMembers(ctx context.Context, groupID int64) ([]model.User, error)
	UserByPhone(ctx context.Context, phone string) (model.User, error)
}

// WithDirectory enables the directory management routes.
func (h *Handler) WithDirectory(d DirectoryAdmin) *Handler {
	h.directory = d
	return h
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var u model.User
	if err := decodeBody(r, &u); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	u.Name = strings.TrimSpace(u.Name)
	u.Phone = strings.TrimSpace(u.Phone)
	if u.Name == "" || u.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name and phone_number are required"})
		return
	}

	id, err := h.directory.CreateUser(r.Context(), u)
	if err != nil {
		h.directoryError(w, "create user", err)
		return
	}
	u.ID = id
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) UserByPhone(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(chi.URLParam(r, "phone"))

	u, err := h.directory.UserByPhone(r.Context(), phone)
	if err != nil {
		h.directoryError(w, "user by phone", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var g model.Group
	if err := decodeBody(r, &g); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name is required"})
		return
	}

	id, err := h.directory.CreateGroup(r.Context(), g)
	if err != nil {
		h.directoryError(w, "create group", err)
		return
	}
	g.ID = id
	writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}

	if err := h.directory.DeleteGroup(r.Context(), groupID); err != nil {
		h.directoryError(w, "delete group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}

	users, err := h.directory.GroupMembers(r.Context(), groupID)
	if err != nil {
		h.directoryError(w, "group members", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.directory.AddMember(r.Context(), groupID, userID); err != nil {
		h.directoryError(w, "add member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(w, r, "groupID")
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.directory.RemoveMember(r.Context(), groupID, userID); err != nil {
		h.directoryError(w, "remove member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) directoryError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	h.log.Error(op+" failed", slog.Any("err", err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}
