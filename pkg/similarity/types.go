package similarity

// FieldType classifies a field definition. The engine treats it as opaque
// metadata and passes it through unmodified; surrounding business logic uses
// it to decide whether two same-named fields are a true conflict or merely
// same-name-different-purpose.
type FieldType string

// Known field types. Custom values are allowed.
const (
	FieldRating  FieldType = "rating"
	FieldSelect  FieldType = "select"
	FieldText    FieldType = "text"
	FieldBoolean FieldType = "boolean"
	FieldNumber  FieldType = "number"
	FieldDate    FieldType = "date"
)

// MatchKind identifies which comparison strategy produced a result. Each kind
// owns a reserved, non-overlapping score band (see the score constants in
// engine.go), so precedence between kinds falls out of a plain score sort.
type MatchKind string

const (
	// MatchExact is a case-insensitive exact name match. Score is always 1.0.
	MatchExact MatchKind = "exact"

	// MatchEditDistance is a spelling-level match within the edit-distance
	// threshold. Scores fall in [0.80, 0.99].
	MatchEditDistance MatchKind = "edit_distance"

	// MatchSemantic is a concept-level match via embedding cosine similarity.
	// Scores fall in [0.60, 0.79].
	MatchSemantic MatchKind = "semantic"

	// MatchNone is used by callers to represent the absence of a match.
	// The engine never emits it; it returns no result instead.
	MatchNone MatchKind = "no_match"
)

// FieldDescriptor is a candidate field definition being compared against.
// It is owned by the caller for the duration of one engine invocation and is
// never stored beyond the call.
type FieldDescriptor struct {
	// ID is the opaque identifier of the field, used for result deduplication
	// and for display. Must be non-empty; an empty ID is a caller bug and
	// fails the invocation.
	ID string

	// Name is the display name being compared.
	Name string

	// Type is the field kind. Pass-through metadata, never inspected.
	Type FieldType
}

// SimilarityResult is one ranked match produced by an engine invocation.
type SimilarityResult struct {
	// Field is the matched candidate, copied from the caller's input.
	Field FieldDescriptor

	// Score is the normalized similarity in [0.0, 1.0]. The score always
	// falls inside the band reserved for Kind.
	Score float64

	// Kind identifies the strategy that produced this result.
	Kind MatchKind

	// Explanation is a human-readable description of why the candidate
	// matched, e.g. "1 character difference" or
	// "similar concept (~85% similarity)".
	Explanation string
}
