package gateway

import (
	"encoding/json"
	"fmt"
)

// ExtractMessageID monta o id externo canônico a partir da resposta de
// envio do gateway. O id pode vir em três formatos, dependendo da versão
// do provedor:
//
//	{"id": "true_5511999998888@c.us_ABC123"}
//	{"id": {"_serialized": "true_5511999998888@c.us_ABC123", ...}}
//	{"key": {"id": "ABC123", "remoteJid": "5511999998888@c.us", "fromMe": true}}
//
// O formato canônico é o serializado ("fromMe_chat_id"), que é o mesmo
// que chega depois nos eventos de recibo.
func ExtractMessageID(raw json.RawMessage) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}

	if id := extractIDField(payload["id"]); id != "" {
		return id
	}
	if id := extractIDField(payload["key"]); id != "" {
		return id
	}
	// Alguns provedores aninham a resposta em _data
	if data, ok := payload["_data"].(map[string]interface{}); ok {
		if id := extractIDField(data["id"]); id != "" {
			return id
		}
		if id := extractIDField(data["key"]); id != "" {
			return id
		}
	}
	return ""
}

func extractIDField(field interface{}) string {
	switch v := field.(type) {
	case string:
		return v
	case map[string]interface{}:
		if s, ok := v["_serialized"].(string); ok && s != "" {
			return s
		}
		if s, ok := v["serialized"].(string); ok && s != "" {
			return s
		}
		// Tripla {id, remoteJid, fromMe} — serializar no formato canônico
		id, _ := v["id"].(string)
		remoteJid, _ := v["remoteJid"].(string)
		if id == "" || remoteJid == "" {
			return ""
		}
		fromMe, _ := v["fromMe"].(bool)
		return fmt.Sprintf("%t_%s_%s", fromMe, remoteJid, id)
	default:
		return ""
	}
}
