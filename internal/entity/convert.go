package entity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/gateway"
)

// Conversion step names reported on partial failure.
const (
	StepCreateClient = "create-client"
	StepUpdateLead   = "update-lead"
)

// LeadConvertedStatus marks a lead that produced a client.
const LeadConvertedStatus = "converted"

// ConversionResult reports how far a lead conversion got. When FailedStep is
// StepUpdateLead the client was already created and stays in the client
// collection; the caller must reconcile (retry the lead update or refresh).
type ConversionResult struct {
	Client     gateway.Item
	Lead       gateway.Item
	FailedStep string
}

// ConvertLeadToClient creates a client from a lead, then marks the lead
// converted with a back-reference. Each step is independently write-through;
// there is no rollback of the first step when the second fails.
func (s *Stores) ConvertLeadToClient(ctx context.Context, leadID uuid.UUID) (ConversionResult, error) {
	leads, err := s.Cache(gateway.KindLeads)
	if err != nil {
		return ConversionResult{}, err
	}
	clients, err := s.Cache(gateway.KindClients)
	if err != nil {
		return ConversionResult{}, err
	}

	lead, ok := leads.Get(leadID)
	if !ok {
		return ConversionResult{}, fmt.Errorf("entity: convert lead: %w", gateway.ErrNotFound)
	}

	clientFields := map[string]any{
		"name":    stringField(lead, "name"),
		"lead_id": lead.ID.String(),
	}
	for _, carried := range []string{"company", "email", "phone"} {
		if v, ok := lead.Field(carried); ok && v != nil {
			clientFields[carried] = v
		}
	}

	client, err := clients.Create(ctx, clientFields)
	if err != nil {
		return ConversionResult{FailedStep: StepCreateClient},
			fmt.Errorf("entity: convert lead %s: %w", StepCreateClient, err)
	}

	updatedLead, err := leads.Update(ctx, lead.ID, map[string]any{
		"status":    LeadConvertedStatus,
		"client_id": client.ID.String(),
	})
	if err != nil {
		return ConversionResult{Client: client, FailedStep: StepUpdateLead},
			fmt.Errorf("entity: convert lead %s: %w", StepUpdateLead, err)
	}

	return ConversionResult{Client: client, Lead: updatedLead}, nil
}

func stringField(item gateway.Item, name string) string {
	if v, ok := item.Field(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
