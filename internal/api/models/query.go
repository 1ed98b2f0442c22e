package models

// QueryResponse is the outcome of a decision probe.
type QueryResponse struct {
	Domain      string `json:"domain"`
	AppID       string `json:"app_id,omitempty"`
	Action      string `json:"action"`
	Reason      string `json:"reason"`
	MatchedList string `json:"matched_list,omitempty"`
	MatchedRule string `json:"matched_rule,omitempty"`
}
