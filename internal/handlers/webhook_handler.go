package handlers

import (
	"encoding/json"
	"net/http"

	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/services"
	"whatsapp-channel/internal/utils"
)

type WebhookHandler struct {
	webhookService *services.WebhookService
}

func NewWebhookHandler(webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// @Summary Receive a gateway event
// @Description Entry point for events pushed by the WhatsApp gateway (message, message.ack, poll.vote)
// @Tags webhook
// @Accept json
// @Produce json
// @Param event body models.WebhookEvent true "Gateway event envelope"
// @Success 200 {object} models.APIResponse
// @Failure 500 {object} models.APIResponse
// @Router /webhook [post]
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var event models.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		// Payload ilegível é reconhecido: reentrega não vai melhorar
		utils.LogWarning("Webhook com corpo inválido: %v", err)
		models.RespondWithJSON(w, http.StatusOK,
			models.NewSuccessResponse("Evento ignorado", nil))
		return
	}

	if err := h.webhookService.HandleEvent(r.Context(), event); err != nil {
		// Falha interna genuína: não-2xx para o gateway reentregar
		utils.LogError("Erro ao processar evento %q da sessão %q: %v", event.Event, event.Session, err)
		models.RespondWithJSON(w, http.StatusInternalServerError,
			models.NewErrorResponse("Erro ao processar evento"))
		return
	}

	models.RespondWithJSON(w, http.StatusOK,
		models.NewSuccessResponse("Evento processado", nil))
}
