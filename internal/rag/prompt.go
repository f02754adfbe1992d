package rag

import (
	"fmt"
	"strings"

	"github.com/adl-legal/legald/internal/drafting"
	"github.com/adl-legal/legald/internal/llm"
	"github.com/adl-legal/legald/internal/retrieval"
)

// systemPrompt fixes the assistant's persona, grounding rules, and answer
// structure. Arabic output is mandated by rule 7.
const systemPrompt = `أنت "ADL Legal Assistant"، مساعد ذكاء اصطناعي محترف متخصص حصرياً في القانون اللبناني.
دورك هو مساعدة المحامين وطلاب الحقوق والمهنيين القانونيين من خلال تقديم معلومات قانونية دقيقة بناءً على القوانين والاجتهادات اللبنانية.

القواعد الأساسية:
1. يجب إعطاء الأولوية للنصوص القانونية والاجتهادات المتوفرة في سياق البحث (Context) على معلوماتك العامة.
2. استند دائماً إلى القانون اللبناني عند الضرورة.
3. قم دائماً بذكر القانون ذي الصلة، رقم المادة، أو الاجتهاد عند توفره.
4. إذا لم تكن الإجابة موجودة بوضوح في النصوص القانونية المقدمة، قل حرفياً:
"لا يوجد نص قانوني واضح في قاعدة البيانات المتاحة يجيب بشكل مباشر على هذا السؤال، لكن يمكن الرجوع إلى..."
5. لا تقم أبداً باختراع قوانين أو مواد أو اجتهادات قضائية.
6. لا تقدم استشارات قانونية نهائية؛ قدم معلومات قانونية فقط.
7. يجب أن تكون الإجابة دائماً باللغة العربية الفصحى والمهنية.

هيكلية الإجابة (في حال الاستفسار القانوني):
- الإجابة القانونية:
[شرح واضح ودقيق]

- النصوص القانونية ذات الصلة:
[قائمة بالمواد القانونية]

- الاجتهادات ذات الصلة (إن وجدت):
[قائمة بالاجتهادات القضائية]

هيكلية الإجابة (في حال طلب صياغة مستند):
1. إذا نقصت معلومات أساسية: اطلبها من المستخدم بشكل مهني وواضح في نقاط.
2. إذا توفرت المعلومات: قم بصياغة المستند (عقد، إنذار، بند) بأسلوب قانوني رصين ودقيق، مع تضمين كافة النصوص القانونية اللبنانية المرعية الإجراء.

- ملاحظة:
دائماً أذكر أن هذه معلومات عامة وليست استشارة قانونية. في حال كانت لديك قضية قائمة في لبنان، قد ترغب باستشارة محامٍ مختص في المجال.
حافظ على نبرة مهنية ورسمية.
`

// ContextText renders retrieved chunks into the flat block embedded in the
// system message and handed to the evaluator. Empty when nothing was
// retrieved.
func ContextText(chunks []retrieval.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, fmt.Sprintf("Source Type: %s\nText: %s", c.SourceType, c.Text))
	}
	return strings.Join(parts, "\n\n")
}

// assembleMessages builds the full model conversation: system message
// (persona + context or degradation notice + optional drafting instruction),
// prior history in order, and the current question last.
//
// contextText and notice are mutually exclusive; when both are empty the
// model answers from general knowledge without a notice.
func assembleMessages(q Query, contextText, notice string, tmpl *drafting.Template) []llm.Message {
	var sb strings.Builder
	sb.WriteString(systemPrompt)

	if contextText != "" {
		sb.WriteString("\n\n### LEBANESE LEGAL CONTEXT:\n")
		sb.WriteString(contextText)
		sb.WriteString("\n")
	} else if notice != "" {
		sb.WriteString("\n\n### SYSTEM NOTICE:\n")
		sb.WriteString(notice)
		sb.WriteString(". Proceeding with general knowledge.\n")
	}

	if tmpl != nil {
		sb.WriteString("\n\n### DOCUMENT DRAFTING INSTRUCTION:\n")
		sb.WriteString("User wants to draft: " + tmpl.Name + "\n")
		sb.WriteString("Required Fields: " + strings.Join(tmpl.RequiredFields, ", ") + "\n")
		sb.WriteString("Description: " + tmpl.Description + "\n")
	}

	msgs := make([]llm.Message, 0, len(q.History)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: sb.String()})
	msgs = append(msgs, q.History...)
	msgs = append(msgs, llm.Message{Role: "user", Content: q.Text})
	return msgs
}
