package models

import "testing"

func TestValidMessageType(t *testing.T) {
	for _, valid := range []string{MessageText, MessageImage, MessageFile, MessageVoice, MessageVideo} {
		if !ValidMessageType(valid) {
			t.Errorf("expected %q to be valid", valid)
		}
	}

	for _, invalid := range []string{"", "text", "STICKER", "Text "} {
		if ValidMessageType(invalid) {
			t.Errorf("expected %q to be invalid", invalid)
		}
	}
}

func TestConversationIsGroup(t *testing.T) {
	if (&Conversation{Type: ConversationDirect}).IsGroup() {
		t.Error("direct conversation reported as group")
	}
	if !(&Conversation{Type: ConversationGroup}).IsGroup() {
		t.Error("group conversation not reported as group")
	}
}
