// Package drafting detects document-drafting requests and describes the fixed
// catalog of Lebanese legal document templates.
package drafting

import "strings"

// Template describes one document template the assistant can guide a user
// through filling in.
type Template struct {
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	RequiredFields []string `json:"required_fields"`
	Description    string   `json:"description"`
}

// Template keys.
const (
	LeaseAgreement  = "lease_agreement"
	DemandLetter    = "demand_letter"
	PowerOfAttorney = "power_of_attorney"
)

// templates is the fixed catalog, built once at startup.
var templates = map[string]Template{
	LeaseAgreement: {
		Key:  LeaseAgreement,
		Name: "عقد إيجار (Lease Agreement)",
		RequiredFields: []string{
			"اسم المؤجر (Lessor Name)",
			"اسم المستأجر (Lessee Name)",
			"وصف المأجور (Property Description)",
			"بدل الإيجار (Rent Amount)",
			"مدة الإيجار (Lease Duration)",
		},
		Description: "عقد إيجار سكني أو تجاري خاضع لقانون الإيجارات اللبناني.",
	},
	DemandLetter: {
		Key:  DemandLetter,
		Name: "إنذار بوجوب الدفع (Demand Letter)",
		RequiredFields: []string{
			"اسم الدائن (Creditor Name)",
			"اسم المدين (Debtor Name)",
			"المبلغ المستحق (Amount Owed)",
			"سبب الدين (Reason for Debt)",
		},
		Description: "كتاب رسمي لمطالبة مدين بتسديد مبالغ متأخرة قبل اتخاذ إجراءات قانونية.",
	},
	PowerOfAttorney: {
		Key:  PowerOfAttorney,
		Name: "وكالة خاصة (Special Power of Attorney)",
		RequiredFields: []string{
			"اسم الموكل (Principal Name)",
			"اسم الوكيل (Attorney-in-Fact Name)",
			"موضوع الوكالة (Subject of Power of Attorney)",
		},
		Description: "وكالة لشخص معين للقيام بأعمال قانونية محددة.",
	},
}

// classifiers is the fixed priority order with each template's keyword set.
// The first template with a keyword found in the query wins.
var classifiers = []struct {
	key      string
	keywords []string
}{
	{LeaseAgreement, []string{"عقد", "إيجار", "اجار", "lease", "rent"}},
	{DemandLetter, []string{"إنذار", "مطالبة", "demand", "warning"}},
	{PowerOfAttorney, []string{"وكالة", "power of attorney", "poa"}},
}

// Classify reports which template, if any, the query is asking to draft.
// Matching is keyword-based on the case-normalized query; it returns
// ("", false) when no keyword matches.
func Classify(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, c := range classifiers {
		for _, kw := range c.keywords {
			if strings.Contains(q, kw) {
				return c.key, true
			}
		}
	}
	return "", false
}

// Lookup returns the template for key.
func Lookup(key string) (Template, bool) {
	t, ok := templates[key]
	return t, ok
}

// List returns the full catalog in priority order.
func List() []Template {
	out := make([]Template, 0, len(classifiers))
	for _, c := range classifiers {
		out = append(out, templates[c.key])
	}
	return out
}
