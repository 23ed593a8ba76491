package services

import (
	"context"

	"whatsapp-channel/internal/events"
	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/utils"
)

// LeadService mantém os rascunhos de oportunidade consumidos pelo motor
// de pipelines. Um rascunho pendente por (org, telefone): mensagem nova
// do mesmo contato atualiza o snapshot em vez de abrir outro rascunho.
type LeadService struct {
	leads     models.PreOpportunityRepository
	publisher events.Publisher
}

func NewLeadService(leads models.PreOpportunityRepository, publisher events.Publisher) *LeadService {
	return &LeadService{leads: leads, publisher: publisher}
}

func (s *LeadService) Capture(ctx context.Context, session *models.Session, phoneNumber string, body string) error {
	if phoneNumber == "" || session.DestinationPipelineID == nil {
		return nil
	}

	pending, err := s.leads.GetPending(session.OrgID, phoneNumber)
	if err != nil {
		return err
	}
	if pending != nil {
		return s.leads.RegisterMessage(pending.ID, body)
	}

	lead := &models.PreOpportunity{
		OrgID:        session.OrgID,
		PhoneNumber:  phoneNumber,
		PipelineID:   *session.DestinationPipelineID,
		Status:       models.PreOpportunityPending,
		FirstMessage: body,
		LastMessage:  body,
	}
	if err := s.leads.Create(lead); err != nil {
		return err
	}
	utils.LogInfo("Rascunho de oportunidade %d criado para %s (org %d)", lead.ID, phoneNumber, session.OrgID)

	if s.publisher != nil {
		envelope := events.Envelope{
			Meta: events.Meta{
				Kind:  events.KindLeadDraftCreated,
				OrgID: session.OrgID,
			},
			Data: events.LeadDraftCreated{
				PreOpportunityID: lead.ID,
				PhoneNumber:      phoneNumber,
				PipelineID:       lead.PipelineID,
			},
		}
		if err := s.publisher.Publish(ctx, events.KindLeadDraftCreated, envelope); err != nil {
			utils.LogWarning("Erro ao publicar evento de lead %d: %v", lead.ID, err)
		}
	}
	return nil
}
