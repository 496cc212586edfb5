package schema

// AnidbMappingTable represents the 'anidb_mappings' table
type AnidbMappingTable struct {
	Table           string
	ID              string
	AnidbID         string
	MalID           string
	Title           string
	ConfidenceScore string
	Source          string
	CreatedAt       string
	UpdatedAt       string
}

// AnidbMapping is the schema definition for anidb_mappings
var AnidbMapping = AnidbMappingTable{
	Table:           "anidb_mappings",
	ID:              "id",
	AnidbID:         "anidb_id",
	MalID:           "mal_id",
	Title:           "title",
	ConfidenceScore: "confidence_score",
	Source:          "source",
	CreatedAt:       "created_at",
	UpdatedAt:       "updated_at",
}

func (t AnidbMappingTable) Columns() []string {
	return []string{t.ID, t.AnidbID, t.MalID, t.Title, t.ConfidenceScore, t.Source, t.CreatedAt, t.UpdatedAt}
}
