package utils

import "strings"

// Sufixos de endereço usados pelo gateway. O mesmo contato pode aparecer
// na forma canônica (@c.us) ou na forma com alias (@lid).
const (
	UserSuffix    = "@c.us"
	GroupSuffix   = "@g.us"
	ChannelSuffix = "@newsletter"
	LidSuffix     = "@lid"
)

// ChannelTypeFromChatID classifica o chat pelo sufixo do endereço.
func ChannelTypeFromChatID(chatID string) string {
	switch {
	case strings.HasSuffix(chatID, GroupSuffix):
		return "group"
	case strings.HasSuffix(chatID, ChannelSuffix):
		return "channel"
	default:
		return "individual"
	}
}

// PhoneFromJID extrai o número de um endereço do gateway, descartando o
// sufixo e a parte de dispositivo ("5511999999999:12@c.us").
func PhoneFromJID(jid string) string {
	phone := jid
	if i := strings.Index(phone, "@"); i > -1 {
		phone = phone[:i]
	}
	if i := strings.Index(phone, ":"); i > -1 {
		phone = phone[:i]
	}
	return phone
}

func IsLid(jid string) bool {
	return strings.HasSuffix(jid, LidSuffix)
}

// MessageIDSuffix devolve o segmento final de um id externo
// ("true_5511999998888@c.us_ABC123" -> "ABC123"). É o pedaço estável
// entre os dois namespaces de JID do gateway.
func MessageIDSuffix(externalID string) string {
	if i := strings.LastIndex(externalID, "_"); i > -1 {
		return externalID[i+1:]
	}
	return externalID
}
