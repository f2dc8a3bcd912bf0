package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// entityIDPrefixes maps each entity kind to its ID prefix.
var entityIDPrefixes = map[EntityKind]string{
	KindProject:   "proj_",
	KindChapter:   "chap_",
	KindScene:     "scen_",
	KindPanel:     "panl_",
	KindCharacter: "char_",
	KindLocation:  "loca_",
}

const (
	draftIDPrefix       = "drft_"
	generationIDPrefix  = "gen_"
	instructionIDPrefix = "inst_"
)

var (
	draftIDPattern       = regexp.MustCompile(`^drft_[a-zA-Z0-9]{24}$`)
	generationIDPattern  = regexp.MustCompile(`^gen_[a-zA-Z0-9]{24}$`)
	instructionIDPattern = regexp.MustCompile(`^inst_[a-zA-Z0-9]{24}$`)
	entityIDPattern      = regexp.MustCompile(`^(proj|chap|scen|panl|char|loca)_[a-zA-Z0-9]{24}$`)
)

// NewEntityID generates an ID for the given entity kind with its prefix
// followed by 24 cryptographically random alphanumeric characters.
// Unknown kinds fall back to the bare "ent_" prefix.
func NewEntityID(kind EntityKind) string {
	prefix, ok := entityIDPrefixes[kind]
	if !ok {
		prefix = "ent_"
	}
	return prefix + randomAlphanumeric(idLength)
}

// NewDraftID generates a new draft ID.
func NewDraftID() string {
	return draftIDPrefix + randomAlphanumeric(idLength)
}

// NewGenerationID generates a new generation ID.
func NewGenerationID() string {
	return generationIDPrefix + randomAlphanumeric(idLength)
}

// NewInstructionID generates a new instruction ID.
func NewInstructionID() string {
	return instructionIDPrefix + randomAlphanumeric(idLength)
}

// ValidateEntityID checks whether the given string is a well-formed
// entity ID for any known kind.
func ValidateEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// ValidateDraftID checks whether the given string is a valid draft ID.
func ValidateDraftID(id string) bool {
	return draftIDPattern.MatchString(id)
}

// ValidateGenerationID checks whether the given string is a valid
// generation ID.
func ValidateGenerationID(id string) bool {
	return generationIDPattern.MatchString(id)
}

// ValidateInstructionID checks whether the given string is a valid
// instruction ID.
func ValidateInstructionID(id string) bool {
	return instructionIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
