package calendar

// SpecialTag annotates a date without affecting the session
type SpecialTag string

const (
	EOQ        SpecialTag = "EOQ"
	FirstDay   SpecialTag = "FIRST_DAY"
	LastDay    SpecialTag = "LAST_DAY"
	ReportCard SpecialTag = "REPORT_CARD"
)

var specialNames = map[SpecialTag]string{
	EOQ:        "End of Nine Weeks",
	FirstDay:   "First Day",
	LastDay:    "Last Day",
	ReportCard: "Report Card",
}

// ValidSpecialTag reports whether tag belongs to the closed tag set
func ValidSpecialTag(tag string) bool {
	_, ok := specialNames[SpecialTag(tag)]
	return ok
}

// DisplayName returns the human readable name of the tag
func (t SpecialTag) DisplayName() string {
	if name, ok := specialNames[t]; ok {
		return name
	}
	return string(t)
}
