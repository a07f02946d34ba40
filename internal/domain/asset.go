package domain

// AssetGroup enumerates the manifest sections an asset definition populates.
type AssetGroup string

const (
	AssetGroupHero      AssetGroup = "hero"
	AssetGroupPortfolio AssetGroup = "portfolio"
)

// StageDefinition is the generation input of one pipeline stage.
type StageDefinition struct {
	Kind   TaskKind
	Prompt string
}

// AssetDefinition is a named unit of pipeline work. The optional video stage
// consumes the image stage's result of the same definition.
type AssetDefinition struct {
	Name     string
	Group    AssetGroup
	Title    string
	Location string
	Image    StageDefinition
	Video    *StageDefinition
}

// HasVideo reports whether the definition carries a dependent video stage.
func (d AssetDefinition) HasVideo() bool {
	return d.Video != nil
}

// Locations returns how many resource locations the definition produces.
func (d AssetDefinition) Locations() int {
	if d.HasVideo() {
		return 2
	}
	return 1
}
