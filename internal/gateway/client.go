package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"whatsapp-channel/config"
)

// Estados que o gateway reporta para uma sessão remota.
const (
	StatusStarting = "STARTING"
	StatusScanQR   = "SCAN_QR_CODE"
	StatusWorking  = "WORKING"
	StatusFailed   = "FAILED"
	StatusStopped  = "STOPPED"
)

// ErrSessionAlreadyExists indica que o gateway recusou o start porque a
// sessão já existe do lado dele. O chamador deve consultar o status real
// em vez de confiar no erro.
var ErrSessionAlreadyExists = errors.New("sessão já existe no gateway")

// APIError carrega o payload bruto de erro do provedor, para que o
// chamador possa repassá-lo sem perder informação.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway retornou %d: %s", e.StatusCode, e.Body)
}

// IsTransient indica erro que vale uma nova tentativa (5xx ou timeout).
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// Erros de rede/timeout não viram APIError
	return err != nil && !errors.Is(err, ErrSessionAlreadyExists)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type SessionInfo struct {
	Name   string  `json:"name"`
	Status string  `json:"status"`
	Me     *MeInfo `json:"me"`
}

type MeInfo struct {
	ID       string `json:"id"`
	PushName string `json:"pushName"`
}

// QRCode pode vir como imagem pronta (base64) ou como valor cru para
// renderizar localmente.
type QRCode struct {
	Mimetype string `json:"mimetype"`
	Data     string `json:"data"`
	Value    string `json:"value"`
}

type SendResponse struct {
	ExternalMessageID string
	Raw               json.RawMessage
}

type webhookConfig struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type sessionStartRequest struct {
	Config struct {
		Webhooks []webhookConfig `json:"webhooks"`
	} `json:"config"`
}

func (c *Client) StartSession(ctx context.Context, name string, webhookURL string) error {
	req := sessionStartRequest{}
	if webhookURL != "" {
		req.Config.Webhooks = []webhookConfig{{
			URL:    webhookURL,
			Events: []string{"message", "message.ack", "poll.vote"},
		}}
	}

	err := c.doJSON(ctx, http.MethodPost, "/api/sessions/"+name+"/start", req, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(apiErr.Body), "already") {
		return fmt.Errorf("%w: %s", ErrSessionAlreadyExists, apiErr.Body)
	}
	return err
}

func (c *Client) StopSession(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/sessions/"+name+"/stop", nil, nil)
}

func (c *Client) LogoutSession(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/sessions/"+name+"/logout", nil, nil)
}

func (c *Client) DeleteSession(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/sessions/"+name, nil, nil)
}

func (c *Client) GetSessionStatus(ctx context.Context, name string) (*SessionInfo, error) {
	info := &SessionInfo{}
	if err := c.doJSON(ctx, http.MethodGet, "/api/sessions/"+name, nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) GetQR(ctx context.Context, name string) (*QRCode, error) {
	qr := &QRCode{}
	if err := c.doJSON(ctx, http.MethodGet, "/api/"+name+"/auth/qr", nil, qr); err != nil {
		return nil, err
	}
	return qr, nil
}

func (c *Client) SendText(ctx context.Context, session string, chatID string, text string, replyTo string) (*SendResponse, error) {
	body := map[string]interface{}{
		"session": session,
		"chatId":  chatID,
		"text":    text,
	}
	if replyTo != "" {
		body["reply_to"] = replyTo
	}
	return c.send(ctx, "/api/sendText", body)
}

func (c *Client) SendMedia(ctx context.Context, session string, chatID string, fileURL string, mimeType string, fileName string, caption string) (*SendResponse, error) {
	body := map[string]interface{}{
		"session": session,
		"chatId":  chatID,
		"caption": caption,
		"file": map[string]interface{}{
			"url":      fileURL,
			"mimetype": mimeType,
			"filename": fileName,
		},
	}
	return c.send(ctx, "/api/sendFile", body)
}

func (c *Client) SendContact(ctx context.Context, session string, chatID string, contactName string, phoneNumber string) (*SendResponse, error) {
	body := map[string]interface{}{
		"session": session,
		"chatId":  chatID,
		"contacts": []map[string]interface{}{
			{"fullName": contactName, "phoneNumber": phoneNumber},
		},
	}
	return c.send(ctx, "/api/sendContactVcard", body)
}

func (c *Client) SendPoll(ctx context.Context, session string, chatID string, question string, options []string, multipleAnswers bool) (*SendResponse, error) {
	body := map[string]interface{}{
		"session": session,
		"chatId":  chatID,
		"poll": map[string]interface{}{
			"name":            question,
			"options":         options,
			"multipleAnswers": multipleAnswers,
		},
	}
	return c.send(ctx, "/api/sendPoll", body)
}

type GroupInfo struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

func (c *Client) GetGroupInfo(ctx context.Context, session string, groupID string) (*GroupInfo, error) {
	var raw struct {
		Name    string `json:"name"`
		Subject string `json:"subject"`
		Picture string `json:"picture"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/"+session+"/groups/"+groupID, nil, &raw); err != nil {
		return nil, err
	}
	name := raw.Name
	if name == "" {
		name = raw.Subject
	}
	return &GroupInfo{Name: name, AvatarURL: raw.Picture}, nil
}

func (c *Client) GetChannelInfo(ctx context.Context, session string, channelID string) (*GroupInfo, error) {
	var raw struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/"+session+"/channels/"+channelID, nil, &raw); err != nil {
		return nil, err
	}
	return &GroupInfo{Name: raw.Name, AvatarURL: raw.Picture}, nil
}

func (c *Client) GetProfilePicture(ctx context.Context, session string, contactID string) (string, error) {
	var raw struct {
		ProfilePictureURL string `json:"profilePictureURL"`
		URL               string `json:"url"`
	}
	path := "/api/" + session + "/contacts/profile-picture?contactId=" + contactID
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return "", err
	}
	if raw.ProfilePictureURL != "" {
		return raw.ProfilePictureURL, nil
	}
	return raw.URL, nil
}

// DownloadMedia busca os bytes de um anexo hospedado no gateway. As URLs
// de mídia do gateway podem expirar; o chamador decide o que fazer em
// caso de falha.
func (c *Client) DownloadMedia(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro ao baixar arquivo: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: "erro ao baixar arquivo"}
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) send(ctx context.Context, path string, body interface{}) (*SendResponse, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, path, body, &raw); err != nil {
		return nil, err
	}
	return &SendResponse{
		ExternalMessageID: ExtractMessageID(raw),
		Raw:               raw,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("erro ao serializar requisição: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("erro ao chamar gateway: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("erro ao ler resposta do gateway: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("erro ao decodificar resposta do gateway: %v", err)
		}
	}
	return nil
}
