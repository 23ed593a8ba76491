package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"whatsapp-channel/internal/events"
	"whatsapp-channel/internal/gateway"
	"whatsapp-channel/internal/models"
)

// Fakes em memória atrás das interfaces de repositório, no lugar do MySQL.

type fakeSessionRepo struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[int64]*models.Session), nextID: 1}
}

func (r *fakeSessionRepo) Save(session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == 0 {
		session.ID = r.nextID
		r.nextID++
	}
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(id int64) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeSessionRepo) GetByName(name string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.ExternalSessionName == name {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) UpdateStatus(id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.Status = status
	}
	return nil
}

func (r *fakeSessionRepo) SetConnected(id int64, phoneNumber string, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.Status = models.SessionConnected
		if phoneNumber != "" {
			session.PhoneNumber = phoneNumber
			session.PhoneDisplayName = displayName
		}
		now := time.Now()
		session.ConnectedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) SetDisconnected(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.Status = models.SessionDisconnected
		session.PhoneNumber = ""
		session.PhoneDisplayName = ""
		now := time.Now()
		session.DisconnectedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) TouchQR(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		now := time.Now()
		session.LastQRAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) SetPhoneIdentity(id int64, phoneNumber string, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok && session.PhoneNumber == "" {
		session.PhoneNumber = phoneNumber
		session.PhoneDisplayName = displayName
	}
	return nil
}

func (r *fakeSessionRepo) IncrementInbound(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.InboundMessageCount++
	}
	return nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	nextID   int64
	contacts []*models.Contact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{nextID: 1}
}

func (r *fakeContactRepo) GetByPhone(orgID int64, phoneNumber string) (*models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(orgID, phoneNumber), nil
}

func (r *fakeContactRepo) find(orgID int64, phoneNumber string) *models.Contact {
	for _, contact := range r.contacts {
		if contact.OrgID == orgID && contact.PhoneNumber == phoneNumber {
			return contact
		}
	}
	return nil
}

func (r *fakeContactRepo) CreateIfNotExists(orgID int64, phoneNumber string) (*models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if contact := r.find(orgID, phoneNumber); contact != nil {
		return contact, nil
	}
	contact := &models.Contact{
		ID:            r.nextID,
		OrgID:         orgID,
		Name:          phoneNumber,
		PhoneNumber:   phoneNumber,
		ContactStatus: models.ContactStatusPreLead,
	}
	r.nextID++
	r.contacts = append(r.contacts, contact)
	return contact, nil
}

func (r *fakeContactRepo) UpgradeName(orgID int64, phoneNumber string, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	contact := r.find(orgID, phoneNumber)
	if contact == nil || name == "" || name == phoneNumber {
		return nil
	}
	if contact.Name == "" || contact.Name == contact.PhoneNumber {
		contact.Name = name
	}
	return nil
}

func (r *fakeContactRepo) UpdateAvatar(orgID int64, phoneNumber string, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if contact := r.find(orgID, phoneNumber); contact != nil && contact.AvatarURL == "" {
		contact.AvatarURL = avatarURL
	}
	return nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	nextID        int64
	conversations []*models.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{nextID: 1}
}

func (r *fakeConversationRepo) GetByChatID(orgID int64, sessionID int64, externalChatID string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conversation := range r.conversations {
		if conversation.OrgID == orgID && conversation.SessionID == sessionID &&
			conversation.ExternalChatID == externalChatID {
			return conversation, nil
		}
	}
	return nil, nil
}

func (r *fakeConversationRepo) Create(conversation *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation.ID = r.nextID
	r.nextID++
	r.conversations = append(r.conversations, conversation)
	return nil
}

func (r *fakeConversationRepo) RegisterMessage(id int64, at time.Time, inbound bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conversation := range r.conversations {
		if conversation.ID != id {
			continue
		}
		conversation.MessageCount++
		if inbound {
			conversation.UnreadCount++
		}
		if conversation.FirstMessageAt == nil {
			first := at
			conversation.FirstMessageAt = &first
		}
		last := at
		conversation.LastMessageAt = &last
	}
	return nil
}

func (r *fakeConversationRepo) UpdateDisplay(id int64, name string, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conversation := range r.conversations {
		if conversation.ID == id {
			if name != "" {
				conversation.Name = name
			}
			if avatarURL != "" {
				conversation.AvatarURL = avatarURL
			}
		}
	}
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages []*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{nextID: 1}
}

func (r *fakeMessageRepo) Save(message *models.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.messages {
		if existing.OrgID == message.OrgID && existing.ExternalMessageID == message.ExternalMessageID {
			return false, nil
		}
	}
	message.ID = r.nextID
	r.nextID++
	r.messages = append(r.messages, message)
	return true, nil
}

func (r *fakeMessageRepo) GetByExternalID(orgID int64, externalMessageID string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.messages {
		if message.OrgID == orgID && message.ExternalMessageID == externalMessageID {
			return message, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) GetByExternalIDSuffix(orgID int64, suffix string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		message := r.messages[i]
		if message.OrgID == orgID && strings.HasSuffix(message.ExternalMessageID, "_"+suffix) {
			return message, nil
		}
	}
	return nil, nil
}

func (r *fakeMessageRepo) UpdateAck(id int64, rank int, ackName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.messages {
		if message.ID == id && message.DeliveryAck < rank {
			message.DeliveryAck = rank
			message.AckName = ackName
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMessageRepo) UpdatePollOptions(id int64, options []models.PollOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.messages {
		if message.ID == id {
			message.PollOptions = options
		}
	}
	return nil
}

func (r *fakeMessageRepo) byID(id int64) *models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.messages {
		if message.ID == id {
			return message
		}
	}
	return nil
}

type fakeLeadRepo struct {
	mu     sync.Mutex
	nextID int64
	leads  []*models.PreOpportunity
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{nextID: 1}
}

func (r *fakeLeadRepo) GetPending(orgID int64, phoneNumber string) (*models.PreOpportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.leads) - 1; i >= 0; i-- {
		lead := r.leads[i]
		if lead.OrgID == orgID && lead.PhoneNumber == phoneNumber &&
			lead.Status == models.PreOpportunityPending {
			return lead, nil
		}
	}
	return nil, nil
}

func (r *fakeLeadRepo) Create(lead *models.PreOpportunity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead.ID = r.nextID
	r.nextID++
	lead.Status = models.PreOpportunityPending
	lead.MessageCount = 1
	r.leads = append(r.leads, lead)
	return nil
}

func (r *fakeLeadRepo) RegisterMessage(id int64, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.leads {
		if lead.ID == id {
			lead.LastMessage = body
			lead.MessageCount++
		}
	}
	return nil
}

type sendReply struct {
	resp *gateway.SendResponse
	err  error
}

// fakeGateway grava as chamadas e responde a partir de filas configuradas
// pelo teste.
type fakeGateway struct {
	mu sync.Mutex

	startErrs  []error
	startCalls []string
	statusInfo *gateway.SessionInfo
	statusErr  error
	qr         *gateway.QRCode
	qrErr      error

	stopped   []string
	loggedOut []string
	deleted   []string
	logoutErr error
	stopErr   error
	deleteErr error

	sendReplies []sendReply
	sendCalls   int

	groupInfo    *gateway.GroupInfo
	groupErr     error
	downloadData []byte
	downloadErr  error
	downloaded   []string
}

func (g *fakeGateway) StartSession(ctx context.Context, name string, webhookURL string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startCalls = append(g.startCalls, name)
	if len(g.startErrs) > 0 {
		err := g.startErrs[0]
		g.startErrs = g.startErrs[1:]
		return err
	}
	return nil
}

func (g *fakeGateway) StopSession(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = append(g.stopped, name)
	return g.stopErr
}

func (g *fakeGateway) LogoutSession(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loggedOut = append(g.loggedOut, name)
	return g.logoutErr
}

func (g *fakeGateway) DeleteSession(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, name)
	return g.deleteErr
}

func (g *fakeGateway) GetSessionStatus(ctx context.Context, name string) (*gateway.SessionInfo, error) {
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if g.statusInfo != nil {
		return g.statusInfo, nil
	}
	return &gateway.SessionInfo{Name: name, Status: gateway.StatusStarting}, nil
}

func (g *fakeGateway) GetQR(ctx context.Context, name string) (*gateway.QRCode, error) {
	return g.qr, g.qrErr
}

func (g *fakeGateway) nextSend() (*gateway.SendResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendCalls++
	if len(g.sendReplies) > 0 {
		reply := g.sendReplies[0]
		g.sendReplies = g.sendReplies[1:]
		return reply.resp, reply.err
	}
	return &gateway.SendResponse{ExternalMessageID: "true_dest@c.us_GEN"}, nil
}

func (g *fakeGateway) SendText(ctx context.Context, session, chatID, text, replyTo string) (*gateway.SendResponse, error) {
	return g.nextSend()
}

func (g *fakeGateway) SendMedia(ctx context.Context, session, chatID, fileURL, mimeType, fileName, caption string) (*gateway.SendResponse, error) {
	return g.nextSend()
}

func (g *fakeGateway) SendContact(ctx context.Context, session, chatID, contactName, phoneNumber string) (*gateway.SendResponse, error) {
	return g.nextSend()
}

func (g *fakeGateway) SendPoll(ctx context.Context, session, chatID, question string, options []string, multipleAnswers bool) (*gateway.SendResponse, error) {
	return g.nextSend()
}

func (g *fakeGateway) GetGroupInfo(ctx context.Context, session, groupID string) (*gateway.GroupInfo, error) {
	if g.groupErr != nil {
		return nil, g.groupErr
	}
	if g.groupInfo != nil {
		return g.groupInfo, nil
	}
	return &gateway.GroupInfo{}, nil
}

func (g *fakeGateway) GetChannelInfo(ctx context.Context, session, channelID string) (*gateway.GroupInfo, error) {
	return g.GetGroupInfo(ctx, session, channelID)
}

func (g *fakeGateway) GetProfilePicture(ctx context.Context, session, contactID string) (string, error) {
	return "", nil
}

func (g *fakeGateway) DownloadMedia(ctx context.Context, url string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.downloaded = append(g.downloaded, url)
	return g.downloadData, g.downloadErr
}

type fakeBlob struct {
	mu      sync.Mutex
	uploads []string
	err     error
}

func (b *fakeBlob) UploadBytes(data []byte, fileName string, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.uploads = append(b.uploads, fileName)
	return "https://blob.example/" + fileName, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
	keys      []string
}

func (p *fakePublisher) Publish(ctx context.Context, key string, envelope events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.envelopes = append(p.envelopes, envelope)
	return nil
}

func (p *fakePublisher) Close() error { return nil }
