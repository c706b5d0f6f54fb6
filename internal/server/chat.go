package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"spendtalk-backend/internal/assistant"
	"spendtalk-backend/internal/types"
)

const friendlyFailure = "I'm having trouble understanding your request right now. Please try again."

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sid := getOrCreateSessionID(w, r, req.SessionID)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.TurnTimeout)
	defer cancel()
	reply, err := s.engine.HandleTurn(ctx, sid, req.Message)
	if err != nil {
		s.turnError(w, "[chat]", err)
		return
	}
	s.writeJSON(w, http.StatusOK, types.ChatResponse{SessionID: sid, Reply: reply.Text, Intent: intentOf(reply)})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		s.writeError(w, http.StatusNotImplemented, "voice input is not available with the configured model provider")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	sid := getOrCreateSessionID(w, r, r.FormValue("sessionId"))
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio file is required (field 'file')")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 3*s.cfg.TurnTimeout)
	defer cancel()
	transcribed, err := s.transcriber.Transcribe(ctx, header.Filename, file)
	if err != nil {
		log.Printf("[voice] transcription failed: %v", err)
		s.writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	if transcribed == "" {
		s.writeError(w, http.StatusBadGateway, "empty transcription")
		return
	}

	reply, err := s.engine.HandleTurn(ctx, sid, transcribed)
	if err != nil {
		s.turnError(w, "[voice]", err)
		return
	}
	s.writeJSON(w, http.StatusOK, types.ChatResponse{SessionID: sid, Reply: reply.Text, Transcript: transcribed, Intent: intentOf(reply)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sid := getSessionID(r)
	resp := types.HistoryResponse{SessionID: sid, Messages: []types.HistoryMessage{}}
	if sid != "" {
		for _, m := range s.engine.History(sid) {
			resp.Messages = append(resp.Messages, types.HistoryMessage{Role: m.Role, Content: m.Content})
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if sid := getSessionID(r); sid != "" {
		s.engine.Reset(sid)
	}
	ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) turnError(w http.ResponseWriter, prefix string, err error) {
	if errors.Is(err, assistant.ErrEmptyUtterance) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Printf("%s turn failed: %v", prefix, err)
	s.writeError(w, http.StatusInternalServerError, friendlyFailure)
}

func intentOf(r assistant.Reply) *types.IntentResponse {
	return &types.IntentResponse{Type: r.Action, Label: r.Label, Missing: r.Missing, Payload: r.Payload}
}
