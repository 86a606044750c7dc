// Package compat evaluates whether a set of installed components is
// mutually compatible and proposes ranked remediations when it is not.
package compat

// Level is the pairwise compatibility classification.
type Level string

const (
	LevelCompatible   Level = "compatible"
	LevelPartial      Level = "partially-compatible"
	LevelIncompatible Level = "incompatible"
	LevelDeprecated   Level = "deprecated"
	LevelExperimental Level = "experimental"
	LevelUnknown      Level = "unknown"
)

// levelWeight feeds the report score: 1.0 is fully healthy, 0 is broken.
var levelWeight = map[Level]float64{
	LevelCompatible:   1.0,
	LevelPartial:      0.6,
	LevelExperimental: 0.6,
	LevelDeprecated:   0.4,
	LevelUnknown:      0.8,
	LevelIncompatible: 0.0,
}

// ResourceRequirements lists the resources a component claims exclusively.
type ResourceRequirements struct {
	Ports []int    `yaml:"ports,omitempty" json:"ports,omitempty"`
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty"`
}

// ComponentProfile describes one component's relationships and claims.
type ComponentProfile struct {
	Name            string               `yaml:"name" json:"name"`
	Version         string               `yaml:"version,omitempty" json:"version,omitempty"`
	Category        string               `yaml:"category,omitempty" json:"category,omitempty"`
	Dependencies    []string             `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	ConflictsWith   []string             `yaml:"conflicts_with,omitempty" json:"conflicts_with,omitempty"`
	Provides        []string             `yaml:"provides,omitempty" json:"provides,omitempty"`
	Requires        map[string]string    `yaml:"requires,omitempty" json:"requires,omitempty"`
	PlatformSupport []string             `yaml:"platform_support,omitempty" json:"platform_support,omitempty"`
	Resources       ResourceRequirements `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// Rule is an explicit compatibility statement about an unordered component
// pair. A rule written as (A,B) also matches a query (B,A). Version
// constraints use the expressions understood by version.Satisfies.
type Rule struct {
	ComponentA string   `yaml:"component_a" json:"component_a"`
	ComponentB string   `yaml:"component_b" json:"component_b"`
	VersionA   string   `yaml:"version_a,omitempty" json:"version_a,omitempty"`
	VersionB   string   `yaml:"version_b,omitempty" json:"version_b,omitempty"`
	Platforms  []string `yaml:"platforms,omitempty" json:"platforms,omitempty"`
	Level      Level    `yaml:"level" json:"level"`
	Notes      string   `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// ConflictType classifies a detected conflict.
type ConflictType string

const (
	ConflictVersion       ConflictType = "version"
	ConflictDependency    ConflictType = "dependency"
	ConflictPlatform      ConflictType = "platform"
	ConflictResource      ConflictType = "resource"
	ConflictConfiguration ConflictType = "configuration"
	ConflictRuntime       ConflictType = "runtime"
	ConflictPath          ConflictType = "path"
	ConflictPort          ConflictType = "port"
)

// Severity grades a conflict's impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for sorting, highest impact first.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// ConflictDetection is one identified conflict in the installed set.
type ConflictDetection struct {
	ID            string       `yaml:"id" json:"id"`
	Type          ConflictType `yaml:"type" json:"type"`
	Components    []string     `yaml:"components" json:"components"`
	Description   string       `yaml:"description" json:"description"`
	Severity      Severity     `yaml:"severity" json:"severity"`
	AffectedFuncs []string     `yaml:"affected_functionality,omitempty" json:"affected_functionality,omitempty"`
}

// ResolutionStrategy names a remediation approach.
type ResolutionStrategy string

const (
	StrategyUpgrade     ResolutionStrategy = "upgrade"
	StrategyDowngrade   ResolutionStrategy = "downgrade"
	StrategyAlternative ResolutionStrategy = "alternative"
	StrategyExclude     ResolutionStrategy = "exclude"
	StrategyIsolate     ResolutionStrategy = "isolate"
	StrategyConfigure   ResolutionStrategy = "configure"
	StrategyManual      ResolutionStrategy = "manual"
	StrategyIgnore      ResolutionStrategy = "ignore"
)

// ConflictResolution is a proposed remediation for one conflict. The
// rollback plan is carried as data only; no executor ships in this module.
type ConflictResolution struct {
	ConflictID         string             `yaml:"conflict_id" json:"conflict_id"`
	Strategy           ResolutionStrategy `yaml:"strategy" json:"strategy"`
	Actions            []string           `yaml:"actions" json:"actions"`
	EstimatedImpact    string             `yaml:"estimated_impact,omitempty" json:"estimated_impact,omitempty"`
	SuccessProbability float64            `yaml:"success_probability" json:"success_probability"`
	RollbackPlan       []string           `yaml:"rollback_plan,omitempty" json:"rollback_plan,omitempty"`
}

// Summary totals a compatibility report.
type Summary struct {
	Pairs     int           `json:"pairs"`
	Counts    map[Level]int `json:"counts"`
	Conflicts int           `json:"conflicts"`
	Score     float64       `json:"score"`
}

// Report is the full compatibility evaluation of an installed set.
type Report struct {
	Summary     Summary                     `json:"summary"`
	Conflicts   []ConflictDetection         `json:"conflicts"`
	Resolutions []ConflictResolution        `json:"resolutions"`
	Matrix      map[string]map[string]Level `json:"compatibility_matrix"`
}
