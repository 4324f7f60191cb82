package normalize

import "strings"

// Role is the controlled vocabulary for normalized agent roles
// (spec.md §3.2).
type Role string

const (
	RoleAuthor      Role = "author"
	RolePrinter     Role = "printer"
	RolePublisher   Role = "publisher"
	RoleTranslator  Role = "translator"
	RoleEditor      Role = "editor"
	RoleIllustrator Role = "illustrator"
	RoleCommentator Role = "commentator"
	RoleScribe      Role = "scribe"
	RoleFormerOwner Role = "former_owner"
	RoleDedicatee   Role = "dedicatee"
	RoleBookseller  Role = "bookseller"
	RoleEngraver    Role = "engraver"
	RoleBinder      Role = "binder"
	RoleAnnotator   Role = "annotator"
	RoleOther       Role = "other"
)

const (
	methodRelatorCode = "relator_code"
	methodRelatorTerm = "relator_term"
	methodUnmapped    = "unmapped"
	methodMissingRole = "missing_role"

	confRelatorCode = 0.99
	confRelatorTerm = 0.95
	confUnmapped    = 0.60
	confMissingRole = 0.50
)

// relatorCodeTable maps MARC relator codes ($4) to the controlled role
// vocabulary. Not exhaustive of the MARC relator list; covers the roles
// this corpus's vocabulary enumerates.
var relatorCodeTable = map[string]Role{
	"aut": RoleAuthor,
	"prt": RolePrinter,
	"pbl": RolePublisher,
	"trl": RoleTranslator,
	"edt": RoleEditor,
	"ill": RoleIllustrator,
	"cmm": RoleCommentator,
	"scr": RoleScribe,
	"fmo": RoleFormerOwner,
	"dte": RoleDedicatee,
	"bsl": RoleBookseller,
	"egr": RoleEngraver,
	"bnd": RoleBinder,
	"ann": RoleAnnotator,
}

// relatorTermTable maps natural-language relator terms ($e) to the same
// controlled vocabulary, matched after lowercasing and trimming.
var relatorTermTable = map[string]Role{
	"author":        RoleAuthor,
	"creator":       RoleAuthor, // main-entry (1xx) tag-inferred label, not a MARC relator term
	"printer":       RolePrinter,
	"publisher":     RolePublisher,
	"translator":    RoleTranslator,
	"editor":        RoleEditor,
	"illustrator":   RoleIllustrator,
	"commentator":   RoleCommentator,
	"scribe":        RoleScribe,
	"former owner":  RoleFormerOwner,
	"dedicatee":     RoleDedicatee,
	"bookseller":    RoleBookseller,
	"engraver":      RoleEngraver,
	"binder":        RoleBinder,
	"annotator":     RoleAnnotator,
}

// RoleResult is the Normalizer's role attachment.
type RoleResult struct {
	Role       Role
	Confidence float64
	Method     string
}

// NormalizeRole implements spec.md §4.2's role-normalization table:
// relator code first, then relator term, then an unmapped/missing
// fallback. roleRaw/roleSource come straight from the Parser's Agent.
func NormalizeRole(roleRaw string, roleSource string) RoleResult {
	if roleRaw == "" {
		return RoleResult{Role: RoleOther, Confidence: confMissingRole, Method: methodMissingRole}
	}

	if roleSource == "relator_code" {
		key := strings.ToLower(strings.TrimSpace(roleRaw))
		if role, ok := relatorCodeTable[key]; ok {
			return RoleResult{Role: role, Confidence: confRelatorCode, Method: methodRelatorCode}
		}
		return RoleResult{Role: RoleOther, Confidence: confUnmapped, Method: methodUnmapped}
	}

	if roleSource == "relator_term" {
		key := strings.ToLower(strings.TrimSpace(roleRaw))
		if role, ok := relatorTermTable[key]; ok {
			return RoleResult{Role: role, Confidence: confRelatorTerm, Method: methodRelatorTerm}
		}
		return RoleResult{Role: RoleOther, Confidence: confUnmapped, Method: methodUnmapped}
	}

	// inferred_from_tag carries a role word ("author", "creator") that
	// isn't a relator code or term; try the term table, else unmapped.
	key := strings.ToLower(strings.TrimSpace(roleRaw))
	if role, ok := relatorTermTable[key]; ok {
		return RoleResult{Role: role, Confidence: confRelatorTerm, Method: methodRelatorTerm}
	}
	return RoleResult{Role: RoleOther, Confidence: confUnmapped, Method: methodUnmapped}
}
