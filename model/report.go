package model

// Disclaimer is attached to every report regardless of model output.
const Disclaimer = "Отчёт сформирован автоматически и не является юридической консультацией."

// ClauseRefUnknown is what the model writes when a clause cannot be located.
const ClauseRefUnknown = "—"

// Summary bounds enforced after validation.
const (
	SummaryMin = 5
	SummaryMax = 7
)

// Overall attention levels.
const (
	AttentionLow    = "Низкий уровень внимания"
	AttentionMedium = "Средний уровень внимания"
	AttentionHigh   = "Повышенное внимание"
)

// Risk categories.
const (
	CategoryLiability       = "ответственность"
	CategoryDeadlines       = "сроки"
	CategoryPayment         = "оплата"
	CategoryTermination     = "расторжение"
	CategoryConfidentiality = "конфиденциальность"
)

// Sections the model may report as missing.
const (
	MissingForceMajeure       = "форс-мажор"
	MissingLiability          = "ответственность"
	MissingTerminationProcess = "порядок расторжения"
)

var (
	AttentionLevels = []string{AttentionLow, AttentionMedium, AttentionHigh}
	RiskCategories  = []string{
		CategoryLiability,
		CategoryDeadlines,
		CategoryPayment,
		CategoryTermination,
		CategoryConfidentiality,
	}
	MissingSectionValues = []string{MissingForceMajeure, MissingLiability, MissingTerminationProcess}
)

// Report is the validated analysis result for one contract.
type Report struct {
	Cover           Cover               `json:"cover"`
	Summary         []string            `json:"summary"`
	RiskMap         []RiskItem          `json:"risk_map"`
	Atypical        []AtypicalItem      `json:"atypical"`
	Contradictions  []ContradictionItem `json:"contradictions"`
	DutiesBalance   DutiesBalance       `json:"duties_balance"`
	NeedsSpecialist []SpecialistItem    `json:"needs_specialist"`
	MissingSections []string            `json:"missing_sections"`
	Disclaimer      string              `json:"disclaimer"`
}

type Cover struct {
	ContractType  string `json:"contract_type"`
	AnalysisDate  string `json:"analysis_date"` // YYYY-MM-DD
	Pages         int    `json:"pages"`
	OverallStatus string `json:"overall_status"`
	Chars         *int   `json:"chars,omitempty"`
	Words         *int   `json:"words,omitempty"`
}

type RiskItem struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	ClauseRef   string `json:"clause_ref"`
}

type AtypicalItem struct {
	Quote string `json:"quote"`
	Note  string `json:"note"`
}

type ContradictionItem struct {
	Description string   `json:"description"`
	ClauseRefs  []string `json:"clause_refs"`
}

type DutiesBalance struct {
	CustomerCount int    `json:"customer_count"`
	ProviderCount int    `json:"provider_count"`
	Note          string `json:"note"`
}

type SpecialistItem struct {
	Item      string `json:"item"`
	ClauseRef string `json:"clause_ref"`
}

// SetTextMetrics records the size of the analysed text on the cover.
func (r *Report) SetTextMetrics(chars, words int) {
	r.Cover.Chars = &chars
	r.Cover.Words = &words
}

// Clone returns a deep copy so readers never share slices with the writer.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Summary = append([]string(nil), r.Summary...)
	out.RiskMap = append([]RiskItem(nil), r.RiskMap...)
	out.Atypical = append([]AtypicalItem(nil), r.Atypical...)
	out.Contradictions = make([]ContradictionItem, len(r.Contradictions))
	for i, c := range r.Contradictions {
		c.ClauseRefs = append([]string(nil), c.ClauseRefs...)
		out.Contradictions[i] = c
	}
	out.NeedsSpecialist = append([]SpecialistItem(nil), r.NeedsSpecialist...)
	out.MissingSections = append([]string(nil), r.MissingSections...)
	if r.Cover.Chars != nil {
		v := *r.Cover.Chars
		out.Cover.Chars = &v
	}
	if r.Cover.Words != nil {
		v := *r.Cover.Words
		out.Cover.Words = &v
	}
	return &out
}
