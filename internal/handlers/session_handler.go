package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/services"
	"whatsapp-channel/internal/utils"
)

type SessionHandler struct {
	sessionService *services.SessionService
}

func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		models.RespondWithJSON(w, http.StatusNotFound,
			models.NewErrorResponse("Sessão não encontrada"))
	case errors.Is(err, services.ErrSessionNotConnected):
		models.RespondWithJSON(w, http.StatusConflict,
			models.NewErrorResponse("Sessão não está conectada"))
	default:
		models.RespondWithJSON(w, http.StatusInternalServerError,
			models.NewErrorResponse(err.Error()))
	}
}

func sessionIDFromQuery(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("session_id"), 10, 64)
	return id, err == nil && id > 0
}

// @Summary Start a session
// @Description Start (or reconcile) the WhatsApp session on the gateway
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body models.StartSessionRequest true "Session to start"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /sessions/start [post]
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID <= 0 {
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("session_id é obrigatório"))
		return
	}

	result, err := h.sessionService.Start(r.Context(), req.SessionID)
	if err != nil {
		utils.LogError("Erro ao iniciar sessão %d: %v", req.SessionID, err)
		respondServiceError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Sessão iniciada", result))
}

// @Summary Get the pairing QR code
// @Description Fetch the current QR code as a PNG data URI, or the connected status if pairing already finished
// @Tags sessions
// @Produce json
// @Param session_id query int true "Session ID"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /sessions/qrcode [get]
func (h *SessionHandler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromQuery(r)
	if !ok {
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("session_id é obrigatório"))
		return
	}

	result, err := h.sessionService.GetQR(r.Context(), sessionID)
	if err != nil {
		utils.LogError("Erro ao buscar QR da sessão %d: %v", sessionID, err)
		respondServiceError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("QR code", result))
}

// @Summary Get session status
// @Description Local status reconciled with the gateway's remote status
// @Tags sessions
// @Produce json
// @Param session_id query int true "Session ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /sessions/status [get]
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromQuery(r)
	if !ok {
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("session_id é obrigatório"))
		return
	}

	result, err := h.sessionService.Status(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Status da sessão", result))
}

// @Summary Disconnect a session
// @Description Best-effort logout, stop and delete on the gateway; local state always ends disconnected
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body models.StartSessionRequest true "Session to disconnect"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /sessions/disconnect [post]
func (h *SessionHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID <= 0 {
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("session_id é obrigatório"))
		return
	}

	if err := h.sessionService.Disconnect(r.Context(), req.SessionID); err != nil {
		utils.LogError("Erro ao desconectar sessão %d: %v", req.SessionID, err)
		respondServiceError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Sessão desconectada", nil))
}

// @Summary Send a text message
// @Description Send a text message through a connected session
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendTextRequest true "Message to send"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /send-text [post]
func (h *SessionHandler) HandleSendText(w http.ResponseWriter, r *http.Request) {
	var req models.SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID <= 0 || req.ChatID == "" || req.Body == "" {
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("session_id, chat_id e body são obrigatórios"))
		return
	}

	result, err := h.sessionService.SendText(r.Context(), req)
	if err != nil {
		utils.LogError("Erro ao enviar texto pela sessão %d: %v", req.SessionID, err)
		respondServiceError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Mensagem enviada", result))
}

// @Summary Send a media message
// @Description Send a file already hosted on blob storage through a connected session
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendMediaRequest true "Media to send"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /send-media [post]
func (h *SessionHandler) HandleSendMedia(w http.ResponseWriter, r *http.Request) {
	var req models.SendMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID <= 0 || req.ChatID == "" || req.URL == "" {
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("session_id, chat_id e url são obrigatórios"))
		return
	}

	result, err := h.sessionService.SendMedia(r.Context(), req)
	if err != nil {
		utils.LogError("Erro ao enviar mídia pela sessão %d: %v", req.SessionID, err)
		respondServiceError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Mídia enviada", result))
}

// @Summary Send a contact card
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendContactRequest true "Contact to send"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /send-contact [post]
func (h *SessionHandler) HandleSendContact(w http.ResponseWriter, r *http.Request) {
	var req models.SendContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID <= 0 || req.ChatID == "" || req.PhoneNumber == "" {
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("session_id, chat_id e phone_number são obrigatórios"))
		return
	}

	result, err := h.sessionService.SendContact(r.Context(), req)
	if err != nil {
		utils.LogError("Erro ao enviar contato pela sessão %d: %v", req.SessionID, err)
		respondServiceError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Contato enviado", result))
}

// @Summary Send a poll
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendPollRequest true "Poll to send"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /send-poll [post]
func (h *SessionHandler) HandleSendPoll(w http.ResponseWriter, r *http.Request) {
	var req models.SendPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID <= 0 || req.ChatID == "" {
		models.RespondWithJSON(w, http.StatusBadRequest,
			models.NewErrorResponse("session_id e chat_id são obrigatórios"))
		return
	}

	result, err := h.sessionService.SendPoll(r.Context(), req)
	if err != nil {
		utils.LogError("Erro ao enviar enquete pela sessão %d: %v", req.SessionID, err)
		respondServiceError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Enquete enviada", result))
}
