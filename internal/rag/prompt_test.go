package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adl-legal/legald/internal/drafting"
	"github.com/adl-legal/legald/internal/llm"
	"github.com/adl-legal/legald/internal/retrieval"
)

func TestContextText(t *testing.T) {
	chunks := []retrieval.Chunk{
		{SourceType: "law_article", Text: "المادة 543 من قانون الموجبات والعقود"},
		{SourceType: "court_ruling", Text: "قرار محكمة التمييز رقم 45"},
	}

	got := ContextText(chunks)
	want := "Source Type: law_article\nText: المادة 543 من قانون الموجبات والعقود\n\n" +
		"Source Type: court_ruling\nText: قرار محكمة التمييز رقم 45"
	assert.Equal(t, want, got)
	assert.Empty(t, ContextText(nil))
}

func TestAssembleMessages_ContextBlock(t *testing.T) {
	q := Query{Text: "ما هي حقوق المستأجر؟"}
	msgs := assembleMessages(q, "Source Type: law_article\nText: المادة 543", "", nil)

	require.Len(t, msgs, 2)
	system := msgs[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "### LEBANESE LEGAL CONTEXT:")
	assert.Contains(t, system.Content, "المادة 543")
	assert.NotContains(t, system.Content, "### SYSTEM NOTICE:")
	assert.Equal(t, llm.Message{Role: "user", Content: "ما هي حقوق المستأجر؟"}, msgs[1])
}

func TestAssembleMessages_NoticeBlock(t *testing.T) {
	q := Query{Text: "question"}
	msgs := assembleMessages(q, "", "Legal database is temporarily unavailable.", nil)

	system := msgs[0].Content
	assert.Contains(t, system, "### SYSTEM NOTICE:\nLegal database is temporarily unavailable.. Proceeding with general knowledge.")
	assert.NotContains(t, system, "### LEBANESE LEGAL CONTEXT:")
}

func TestAssembleMessages_NoContextNoNotice(t *testing.T) {
	msgs := assembleMessages(Query{Text: "q"}, "", "", nil)
	system := msgs[0].Content
	assert.NotContains(t, system, "### SYSTEM NOTICE:")
	assert.NotContains(t, system, "### LEBANESE LEGAL CONTEXT:")
	assert.True(t, strings.HasPrefix(system, systemPrompt))
}

func TestAssembleMessages_DraftingInstruction(t *testing.T) {
	tmpl, ok := drafting.Lookup(drafting.LeaseAgreement)
	require.True(t, ok)

	msgs := assembleMessages(Query{Text: "بدي عقد إيجار"}, "some context", "", &tmpl)
	system := msgs[0].Content
	assert.Contains(t, system, "### DOCUMENT DRAFTING INSTRUCTION:")
	assert.Contains(t, system, "User wants to draft: "+tmpl.Name)
	assert.Contains(t, system, strings.Join(tmpl.RequiredFields, ", "))
	assert.Contains(t, system, "Description: "+tmpl.Description)
}

func TestAssembleMessages_HistoryOrder(t *testing.T) {
	q := Query{
		Text: "follow-up question",
		History: []llm.Message{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer"},
		},
	}

	msgs := assembleMessages(q, "", "", nil)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "first question", msgs[1].Content)
	assert.Equal(t, "first answer", msgs[2].Content)
	assert.Equal(t, llm.Message{Role: "user", Content: "follow-up question"}, msgs[3])
}
