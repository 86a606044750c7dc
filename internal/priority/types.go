// Package priority ranks the candidates detected for one required component
// through four fixed priority tiers and emits a single recommendation.
package priority

import (
	"toolscan/internal/detect"
)

// Tier is one of the four fixed priority levels, evaluated top-down.
type Tier string

const (
	TierInstalled  Tier = "installed-applications"
	TierCompatible Tier = "compatible-versions"
	TierStandard   Tier = "standard-locations"
	TierCustom     Tier = "custom-configuration"
)

// tierOrder gives the evaluation order, best first.
var tierOrder = []Tier{TierInstalled, TierCompatible, TierStandard, TierCustom}

// baseScore is the scoring contribution of each tier.
var baseScore = map[Tier]float64{
	TierInstalled:  0.9,
	TierCompatible: 0.7,
	TierStandard:   0.5,
	TierCustom:     0.3,
}

// Level classifies a recommended candidate against a required version.
type Level string

const (
	LevelPerfect      Level = "perfect"
	LevelCompatible   Level = "compatible"
	LevelOutdated     Level = "outdated"
	LevelIncompatible Level = "incompatible"
)

// compatBonus is the scoring contribution of each compatibility level.
var compatBonus = map[Level]float64{
	LevelPerfect:      0.10,
	LevelCompatible:   0.05,
	LevelOutdated:     0.0,
	LevelIncompatible: -0.20,
}

// Request asks for a recommendation among the candidates detected for one
// logical component.
type Request struct {
	Component       string             `json:"component"`
	RequiredVersion string             `json:"required_version,omitempty"`
	Candidates      []detect.Candidate `json:"candidates"`
}

// Result is the hierarchical prioritization outcome for one component.
type Result struct {
	ComponentName string             `json:"component_name"`
	Level         Tier               `json:"priority_level"`
	Recommended   *detect.Candidate  `json:"recommended_option,omitempty"`
	Alternatives  []detect.Candidate `json:"alternative_options,omitempty"`
	Score         float64            `json:"priority_score"`
	Compatibility Level              `json:"compatibility_level"`
	Reasoning     string             `json:"reasoning"`
	Metadata      map[string]string  `json:"detection_metadata,omitempty"`
}

// Report aggregates prioritization results for a batch of components.
type Report struct {
	Results           []Result         `json:"results"`
	Total             int              `json:"total"`
	TierDistribution  map[Tier]int     `json:"tier_distribution"`
	LevelDistribution map[Level]int    `json:"level_distribution"`
	AverageConfidence float64          `json:"average_confidence"`
	Recommendations   []string         `json:"recommendations"`
	Warnings          []string         `json:"warnings"`
	Errors            []string         `json:"errors"`
}
