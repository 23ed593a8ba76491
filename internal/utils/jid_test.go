package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelTypeFromChatID(t *testing.T) {
	assert.Equal(t, "individual", ChannelTypeFromChatID("5511999999999@c.us"))
	assert.Equal(t, "group", ChannelTypeFromChatID("120363000000000001@g.us"))
	assert.Equal(t, "channel", ChannelTypeFromChatID("111222333@newsletter"))
	assert.Equal(t, "individual", ChannelTypeFromChatID("84300124163@lid"))
}

func TestPhoneFromJID(t *testing.T) {
	assert.Equal(t, "5511999999999", PhoneFromJID("5511999999999@c.us"))
	assert.Equal(t, "5511999999999", PhoneFromJID("5511999999999:12@c.us"))
	assert.Equal(t, "5511999999999", PhoneFromJID("5511999999999"))
	assert.Equal(t, "", PhoneFromJID(""))
}

func TestMessageIDSuffix(t *testing.T) {
	assert.Equal(t, "ABC123", MessageIDSuffix("true_5511999998888@c.us_ABC123"))
	assert.Equal(t, "ABC123", MessageIDSuffix("ABC123"))
}

func TestMessageTypeFromMime(t *testing.T) {
	assert.Equal(t, "image", MessageTypeFromMime("image/jpeg"))
	assert.Equal(t, "video", MessageTypeFromMime("video/mp4"))
	assert.Equal(t, "voice_note", MessageTypeFromMime("audio/ogg; codecs=opus"))
	assert.Equal(t, "audio", MessageTypeFromMime("audio/mpeg"))
	assert.Equal(t, "document", MessageTypeFromMime("application/pdf"))
	assert.Equal(t, "text", MessageTypeFromMime(""))
}

func TestGetExtensionFromMime(t *testing.T) {
	assert.Equal(t, "jpg", GetExtensionFromMime("image/jpeg"))
	assert.Equal(t, "ogg", GetExtensionFromMime("audio/ogg; codecs=opus"))
	assert.Equal(t, "bin", GetExtensionFromMime("application/x-unknown"))
}
