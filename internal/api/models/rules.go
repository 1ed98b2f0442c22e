package models

import "time"

// Rule describes one custom override rule.
type Rule struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Action    string    `json:"action"`
	AppID     string    `json:"app_id,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// RulesResponse contains all custom rules.
type RulesResponse struct {
	Rules []Rule `json:"rules"`
	Count int    `json:"count"`
}

// AddRuleRequest creates a custom rule. AppID is empty for global scope.
type AddRuleRequest struct {
	Domain string `json:"domain" binding:"required"`
	Action string `json:"action" binding:"required,oneof=allow block redirect"`
	AppID  string `json:"app_id"`
}

// RuleEnabledRequest toggles a rule on or off.
type RuleEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
