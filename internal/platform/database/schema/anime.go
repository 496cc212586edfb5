package schema

// AnimeTable represents the 'anime' title catalog keyed by MAL id
type AnimeTable struct {
	Table string
	MalID string
	Title string
}

// Anime is the schema definition for anime
var Anime = AnimeTable{
	Table: "anime",
	MalID: "mal_id",
	Title: "title",
}

func (t AnimeTable) Columns() []string {
	return []string{t.MalID, t.Title}
}
