// Package api serves the REST boundary of the dhandha backend. Every
// business endpoint answers 501 until its service lands; only /health
// is live. The real-time layer is mounted separately on the same
// server.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type notFoundResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewRouter builds the REST surface. clientURL, when non-empty, is
// echoed as the allowed CORS origin.
func NewRouter(clientURL string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)

	// Auth
	mux.Handle("POST /api/auth/register", notImplemented("Registration endpoint not implemented yet"))
	mux.Handle("POST /api/auth/login", notImplemented("Login endpoint not implemented yet"))
	mux.Handle("POST /api/auth/google", notImplemented("Google OAuth endpoint not implemented yet"))
	mux.Handle("POST /api/auth/facebook", notImplemented("Facebook OAuth endpoint not implemented yet"))
	mux.Handle("PUT /api/auth/profile", notImplemented("Profile update endpoint not implemented yet"))
	mux.Handle("POST /api/auth/logout", notImplemented("Logout endpoint not implemented yet"))
	mux.Handle("POST /api/auth/refresh", notImplemented("Token refresh endpoint not implemented yet"))
	mux.Handle("POST /api/auth/forgot-password", notImplemented("Forgot password endpoint not implemented yet"))
	mux.Handle("POST /api/auth/reset-password", notImplemented("Reset password endpoint not implemented yet"))

	// Tasks
	mux.Handle("GET /api/tasks", notImplemented("Get tasks endpoint not implemented yet"))
	mux.Handle("GET /api/tasks/{id}", notImplemented("Get task by ID endpoint not implemented yet"))
	mux.Handle("POST /api/tasks", notImplemented("Create task endpoint not implemented yet"))
	mux.Handle("PUT /api/tasks/{id}", notImplemented("Update task endpoint not implemented yet"))
	mux.Handle("DELETE /api/tasks/{id}", notImplemented("Delete task endpoint not implemented yet"))
	mux.Handle("POST /api/tasks/{id}/accept", notImplemented("Accept task endpoint not implemented yet"))
	mux.Handle("POST /api/tasks/{id}/complete", notImplemented("Complete task endpoint not implemented yet"))
	mux.Handle("POST /api/tasks/{id}/cancel", notImplemented("Cancel task endpoint not implemented yet"))
	mux.Handle("GET /api/tasks/user/{userId}", notImplemented("Get user tasks endpoint not implemented yet"))
	mux.Handle("GET /api/tasks/accepted/{userId}", notImplemented("Get accepted tasks endpoint not implemented yet"))
	mux.Handle("GET /api/tasks/search", notImplemented("Search tasks endpoint not implemented yet"))
	mux.Handle("POST /api/tasks/{id}/images", notImplemented("Upload task images endpoint not implemented yet"))
	mux.Handle("GET /api/tasks/stats", notImplemented("Get task stats endpoint not implemented yet"))

	// Chat
	mux.Handle("GET /api/chat/messages/{taskId}", notImplemented("Get messages endpoint not implemented yet"))
	mux.Handle("POST /api/chat/messages", notImplemented("Send message endpoint not implemented yet"))
	mux.Handle("PUT /api/chat/messages/{taskId}/read", notImplemented("Mark messages as read endpoint not implemented yet"))
	mux.Handle("GET /api/chat/conversations", notImplemented("Get conversations endpoint not implemented yet"))
	mux.Handle("GET /api/chat/unread-count", notImplemented("Get unread count endpoint not implemented yet"))
	mux.Handle("DELETE /api/chat/messages/{messageId}", notImplemented("Delete message endpoint not implemented yet"))

	// Users. GET profile/{id} and GET {id}/rating would be conflicting
	// ServeMux patterns, so the two-segment GETs share one handler with
	// profile taking precedence.
	mux.HandleFunc("GET /api/users/{a}/{b}", handleUsersTwoSegments)
	mux.Handle("PUT /api/users/profile/{id}", notImplemented("Update user profile endpoint not implemented yet"))
	mux.Handle("GET /api/users/search", notImplemented("Search users endpoint not implemented yet"))
	mux.Handle("POST /api/users/{id}/rating", notImplemented("Add user rating endpoint not implemented yet"))
	mux.Handle("GET /api/users/stats", notImplemented("Get user stats endpoint not implemented yet"))

	mux.HandleFunc("/", handleNotFound)

	return withCORS(clientURL, mux)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Message:   "Dhandha API is running",
		Timestamp: time.Now().UTC(),
	})
}

func notImplemented(message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotImplemented, statusResponse{
			Success: false,
			Message: message,
		})
	})
}

func handleUsersTwoSegments(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.PathValue("a") == "profile":
		writeJSON(w, http.StatusNotImplemented, statusResponse{
			Success: false,
			Message: "Get user profile endpoint not implemented yet",
		})
	case r.PathValue("b") == "rating":
		writeJSON(w, http.StatusNotImplemented, statusResponse{
			Success: false,
			Message: "Get user rating endpoint not implemented yet",
		})
	default:
		handleNotFound(w, r)
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{
		Error:   "Route not found",
		Message: fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func withCORS(clientURL string, next http.Handler) http.Handler {
	if clientURL == "" {
		clientURL = "http://localhost:3000"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", clientURL)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
