package services

import (
	"encoding/json"
	"testing"

	"whatsapp-channel/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeResolvesLidAlias(t *testing.T) {
	n, err := normalizeMessage(json.RawMessage(`{
		"id": "false_84300124163@lid_ABC123",
		"from": "84300124163@lid",
		"fromMe": false,
		"body": "Oi",
		"_data": {"id": {"remoteAlt": "5511999999999@c.us"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "5511999999999@c.us", n.ChatID)
	assert.Equal(t, "5511999999999", n.ContactPhone)
}

func TestNormalizeKeepsLidWithoutAltHint(t *testing.T) {
	n, err := normalizeMessage(json.RawMessage(`{
		"id": "false_84300124163@lid_ABC123",
		"from": "84300124163@lid",
		"fromMe": false,
		"body": "Oi"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "84300124163@lid", n.ChatID)
}

func TestNormalizeFromMeViaNestedKey(t *testing.T) {
	n, err := normalizeMessage(json.RawMessage(`{
		"id": "ABC123",
		"from": "5511888888888@c.us",
		"to": "5511999999999@c.us",
		"body": "Espelhada",
		"_data": {"key": {"fromMe": true}}
	}`))
	require.NoError(t, err)
	assert.True(t, n.FromMe)
	assert.Equal(t, "5511999999999@c.us", n.ChatID)
}

func TestNormalizeReplyToFromContextInfo(t *testing.T) {
	n, err := normalizeMessage(json.RawMessage(`{
		"id": "false_5511999999999@c.us_ABC123",
		"from": "5511999999999@c.us",
		"body": "respondendo",
		"_data": {"contextInfo": {"stanzaId": "XYZ789"}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", n.ReplyTo)
}

func TestNormalizeVCard(t *testing.T) {
	n, err := normalizeMessage(json.RawMessage(`{
		"id": "false_5511999999999@c.us_VC1",
		"from": "5511999999999@c.us",
		"type": "vcard",
		"vCards": ["BEGIN:VCARD\nVERSION:3.0\nFN:Maria Souza\nTEL:+5511777777777\nEND:VCARD"]
	}`))
	require.NoError(t, err)
	refineType(n)
	assert.Equal(t, models.TypeContact, n.Type)
	assert.Equal(t, "Maria Souza", n.ContactName)
}

func TestNormalizeLocation(t *testing.T) {
	n, err := normalizeMessage(json.RawMessage(`{
		"id": "false_5511999999999@c.us_LOC1",
		"from": "5511999999999@c.us",
		"location": {"latitude": -23.55, "longitude": -46.63, "description": "Av. Paulista"}
	}`))
	require.NoError(t, err)
	refineType(n)
	assert.Equal(t, models.TypeLocation, n.Type)
	require.NotNil(t, n.Latitude)
	assert.InDelta(t, -23.55, *n.Latitude, 0.001)
	assert.Equal(t, "Av. Paulista", n.LocationName)
}

func TestNormalizeAckByName(t *testing.T) {
	n, err := normalizeAck(json.RawMessage(`{"id": "false_x@c.us_A1", "ackName": "DEVICE"}`))
	require.NoError(t, err)
	assert.Equal(t, models.AckDelivered, n.Rank)
}

func TestNormalizeAckRejectsUnknownRank(t *testing.T) {
	_, err := normalizeAck(json.RawMessage(`{"id": "false_x@c.us_A1", "ack": 9}`))
	assert.Error(t, err)

	_, err = normalizeAck(json.RawMessage(`{"id": "false_x@c.us_A1", "ackName": "TELEPATHY"}`))
	assert.Error(t, err)
}

func TestNormalizeAckCollectsMultipleIDs(t *testing.T) {
	n, err := normalizeAck(json.RawMessage(`{
		"id": "false_x@c.us_A1",
		"ids": ["false_y@c.us_A2", "false_z@c.us_A3"],
		"ack": 2
	}`))
	require.NoError(t, err)
	assert.Len(t, n.IDs, 3)
}

func TestNormalizePollVoteNestedKey(t *testing.T) {
	n, err := normalizePollVote(json.RawMessage(`{
		"vote": {
			"pollCreationMessageKey": {"id": "false_x@c.us_POLL1"},
			"selectedOptions": [{"name": "Manhã"}]
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "false_x@c.us_POLL1", n.PollMessageID)
	assert.Equal(t, []string{"Manhã"}, n.SelectedOptions)
}

func TestNormalizePollVoteWithoutIDFails(t *testing.T) {
	_, err := normalizePollVote(json.RawMessage(`{"votes": ["A"]}`))
	assert.Error(t, err)
}
