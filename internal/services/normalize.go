package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"whatsapp-channel/internal/gateway"
	"whatsapp-channel/internal/models"
	"whatsapp-channel/internal/utils"
)

// Este arquivo concentra todas as manias do payload do provedor: formato
// do id, aninhamento em _data, aliasing @lid, localização do contextInfo.
// O resto do pipeline só enxerga as structs normalizadas daqui.

type normalizedMessage struct {
	ExternalID    string
	ChatID        string
	ChannelType   string
	FromMe        bool
	ContactPhone  string
	SenderDisplay string
	RecipientJID  string
	Participant   string
	Type          string
	Body          string
	HasMedia      bool
	MediaURL      string
	MimeType      string
	FileName      string
	MediaSize     int64
	Duration      int
	Ack           int
	ReplyTo       string
	VCard         string
	ContactName   string
	PollQuestion  string
	PollOptions   []string
	Latitude      *float64
	Longitude     *float64
	LocationName  string
	Timestamp     time.Time
	Raw           json.RawMessage
}

type wireMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
	Filename string `json:"filename"`
	Size     int64  `json:"filesize"`
	Duration int    `json:"duration"`
}

type wireLocation struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
}

type wireMessage struct {
	Timestamp   int64         `json:"timestamp"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Participant string        `json:"participant"`
	FromMe      bool          `json:"fromMe"`
	Body        string        `json:"body"`
	Type        string        `json:"type"`
	NotifyName  string        `json:"notifyName"`
	HasMedia    bool          `json:"hasMedia"`
	Ack         int           `json:"ack"`
	Media       *wireMedia    `json:"media"`
	Location    *wireLocation `json:"location"`
	VCards      []string      `json:"vCards"`
}

func normalizeMessage(raw json.RawMessage) (*normalizedMessage, error) {
	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("payload de mensagem inválido: %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("payload de mensagem inválido: %v", err)
	}

	n := &normalizedMessage{Raw: raw}

	n.ExternalID = gateway.ExtractMessageID(raw)
	// O prefixo do id ("true_"/"false_") não é confiável para direção;
	// só os campos fromMe explícitos contam.
	n.FromMe = wire.FromMe ||
		probeBool(generic, []string{"_data", "id", "fromMe"}, []string{"_data", "key", "fromMe"})

	// Para tráfego espelhado da própria conta, "from" é a nossa identidade
	// e a contraparte real está em "to".
	chatID := wire.From
	if n.FromMe {
		chatID = wire.To
		if chatID == "" {
			chatID = wire.Participant
		}
	}
	n.ChatID = resolveLidAlias(chatID, generic,
		[]string{"_data", "id", "remoteAlt"},
		[]string{"_data", "key", "remoteJidAlt"})
	n.ChannelType = utils.ChannelTypeFromChatID(n.ChatID)

	participant := wire.Participant
	if participant == "" {
		participant = probeString(generic, []string{"author"}, []string{"_data", "author"})
	}
	n.Participant = resolveLidAlias(participant, generic,
		[]string{"_data", "id", "participantAlt"},
		[]string{"_data", "key", "participantAlt"})

	switch n.ChannelType {
	case models.ChannelIndividual:
		n.ContactPhone = utils.PhoneFromJID(n.ChatID)
	default:
		if n.Participant != "" {
			n.ContactPhone = utils.PhoneFromJID(n.Participant)
		} else if !n.FromMe {
			// Sem participant o id do grupo acaba virando o "telefone"
			// do contato. Comportamento herdado; ver DESIGN.md.
			n.ContactPhone = utils.PhoneFromJID(n.ChatID)
		}
	}
	if n.FromMe {
		n.RecipientJID = n.ChatID
	} else {
		n.RecipientJID = wire.To
	}
	n.SenderDisplay = wire.NotifyName
	if n.SenderDisplay == "" {
		n.SenderDisplay = probeString(generic, []string{"_data", "notifyName"}, []string{"pushName"})
	}

	n.Body = wire.Body
	n.Type = wire.Type
	if n.Type == "" {
		n.Type = models.TypeText
	}
	n.Ack = wire.Ack
	n.HasMedia = wire.HasMedia
	if wire.Media != nil {
		n.MediaURL = wire.Media.URL
		n.MimeType = wire.Media.MimeType
		n.FileName = wire.Media.Filename
		n.MediaSize = wire.Media.Size
		n.Duration = wire.Media.Duration
		n.HasMedia = n.HasMedia || n.MediaURL != ""
	}
	if n.MimeType == "" {
		n.MimeType = probeString(generic, []string{"_data", "mimetype"}, []string{"mimetype"})
	}
	if n.Duration == 0 {
		n.Duration = int(probeFloat(generic, []string{"_data", "duration"}))
	}

	// Stanza id da mensagem citada — cada versão do provedor aninha em
	// um lugar diferente.
	n.ReplyTo = probeString(generic,
		[]string{"replyTo", "id"},
		[]string{"replyTo"},
		[]string{"_data", "quotedStanzaID"},
		[]string{"_data", "contextInfo", "stanzaId"},
		[]string{"_data", "quotedMsg", "id", "_serialized"})

	if len(wire.VCards) > 0 {
		n.VCard = wire.VCards[0]
		n.ContactName = vcardDisplayName(n.VCard)
	}

	n.PollQuestion = probeString(generic, []string{"poll", "name"}, []string{"_data", "pollName"})
	for _, item := range probeList(generic, []string{"poll", "options"}, []string{"_data", "pollOptions"}) {
		switch v := item.(type) {
		case string:
			n.PollOptions = append(n.PollOptions, v)
		case map[string]interface{}:
			if name, ok := v["name"].(string); ok {
				n.PollOptions = append(n.PollOptions, name)
			}
		}
	}

	if wire.Location != nil {
		lat, lng := wire.Location.Latitude, wire.Location.Longitude
		n.Latitude = &lat
		n.Longitude = &lng
		n.LocationName = wire.Location.Description
	} else if lat := probeFloat(generic, []string{"lat"}, []string{"_data", "lat"}); lat != 0 {
		lng := probeFloat(generic, []string{"lng"}, []string{"_data", "lng"})
		n.Latitude = &lat
		n.Longitude = &lng
		n.LocationName = probeString(generic, []string{"loc"}, []string{"_data", "loc"})
	}

	if wire.Timestamp > 0 {
		n.Timestamp = time.Unix(wire.Timestamp, 0)
	} else {
		n.Timestamp = time.Now()
	}

	return n, nil
}

// refineType corrige o "text" genérico do gateway quando a estrutura do
// payload indica outra coisa (mimetype, vCard, enquete, localização).
func refineType(n *normalizedMessage) {
	switch {
	case n.PollQuestion != "":
		n.Type = models.TypePollCreation
	case n.VCard != "":
		n.Type = models.TypeContact
	case n.Latitude != nil:
		n.Type = models.TypeLocation
	case n.HasMedia || n.MediaURL != "":
		n.Type = utils.MessageTypeFromMime(n.MimeType)
	default:
		n.Type = canonicalType(n.Type)
	}
}

func canonicalType(gatewayType string) string {
	switch gatewayType {
	case "chat", "", "text":
		return models.TypeText
	case "ptt":
		return models.TypeVoiceNote
	case "vcard":
		return models.TypeContact
	case "image", "video", "audio", "document", "location", "poll", "poll_creation":
		return gatewayType
	default:
		return models.TypeText
	}
}

type normalizedAck struct {
	IDs     []string
	Rank    int
	AckName string
}

var ackRanksByName = map[string]int{
	"PENDING":   models.AckPending,
	"SENT":      models.AckSent,
	"SERVER":    models.AckSent,
	"DEVICE":    models.AckDelivered,
	"DELIVERED": models.AckDelivered,
	"READ":      models.AckRead,
	"PLAYED":    models.AckPlayed,
}

func normalizeAck(raw json.RawMessage) (*normalizedAck, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("payload de recibo inválido: %v", err)
	}

	n := &normalizedAck{Rank: -1}

	if id := gateway.ExtractMessageID(raw); id != "" {
		n.IDs = append(n.IDs, id)
	}
	for _, item := range probeList(generic, []string{"ids"}) {
		if s, ok := item.(string); ok && s != "" {
			n.IDs = append(n.IDs, s)
		}
	}

	if ack, ok := generic["ack"].(float64); ok {
		n.Rank = int(ack)
	}
	n.AckName = probeString(generic, []string{"ackName"})
	if n.Rank < 0 {
		if rank, ok := ackRanksByName[strings.ToUpper(n.AckName)]; ok {
			n.Rank = rank
		}
	}
	if n.Rank < models.AckPending || n.Rank > models.AckPlayed {
		return nil, fmt.Errorf("rank de recibo desconhecido (ack=%d, ackName=%q)", n.Rank, n.AckName)
	}
	if n.AckName == "" {
		n.AckName = models.AckName(n.Rank)
	}
	return n, nil
}

type normalizedPollVote struct {
	PollMessageID   string
	SelectedOptions []string
	Voter           string
}

func normalizePollVote(raw json.RawMessage) (*normalizedPollVote, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("payload de voto inválido: %v", err)
	}

	n := &normalizedPollVote{}

	// O id da enquete aparece em profundidades diferentes conforme a
	// versão do payload do provedor.
	n.PollMessageID = probeString(generic,
		[]string{"pollMessageId"},
		[]string{"poll", "id"},
		[]string{"poll", "id", "_serialized"},
		[]string{"msgId"},
		[]string{"vote", "pollCreationMessageKey", "id"},
		[]string{"_data", "pollCreationMessageKey", "id"})

	for _, item := range probeList(generic,
		[]string{"votes"},
		[]string{"selectedOptions"},
		[]string{"vote", "selectedOptions"}) {
		switch v := item.(type) {
		case string:
			n.SelectedOptions = append(n.SelectedOptions, v)
		case map[string]interface{}:
			if name, ok := v["name"].(string); ok {
				n.SelectedOptions = append(n.SelectedOptions, name)
			}
		}
	}

	n.Voter = probeString(generic, []string{"voter"}, []string{"vote", "voter"})

	if n.PollMessageID == "" {
		return nil, fmt.Errorf("voto sem id da enquete")
	}
	return n, nil
}

// resolveLidAlias troca um endereço @lid pela forma canônica quando o
// payload traz a dica de JID alternativo.
func resolveLidAlias(jid string, generic map[string]interface{}, paths ...[]string) string {
	if !utils.IsLid(jid) {
		return jid
	}
	if alt := probeString(generic, paths...); alt != "" {
		return alt
	}
	return jid
}

func probeValue(m map[string]interface{}, path []string) interface{} {
	var current interface{} = m
	for _, key := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = obj[key]
	}
	return current
}

func probeString(m map[string]interface{}, paths ...[]string) string {
	for _, path := range paths {
		if s, ok := probeValue(m, path).(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func probeBool(m map[string]interface{}, paths ...[]string) bool {
	for _, path := range paths {
		if b, ok := probeValue(m, path).(bool); ok {
			return b
		}
	}
	return false
}

func probeFloat(m map[string]interface{}, paths ...[]string) float64 {
	for _, path := range paths {
		if f, ok := probeValue(m, path).(float64); ok && f != 0 {
			return f
		}
	}
	return 0
}

func probeList(m map[string]interface{}, paths ...[]string) []interface{} {
	for _, path := range paths {
		if list, ok := probeValue(m, path).([]interface{}); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

// vcardDisplayName extrai o FN de um vCard cru.
func vcardDisplayName(vcard string) string {
	for _, line := range strings.Split(vcard, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(line), "FN:") {
			return strings.TrimSpace(line[3:])
		}
	}
	return ""
}
