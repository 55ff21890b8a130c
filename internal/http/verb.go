package http

import "strings"

// Verb is the request method class. It decides how a body is sent.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbGet
	VerbPost
	VerbPut
	VerbDelete
	VerbHead
	VerbPatch
)

var verbNames = map[string]Verb{
	"GET":    VerbGet,
	"POST":   VerbPost,
	"PUT":    VerbPut,
	"DELETE": VerbDelete,
	"HEAD":   VerbHead,
	"PATCH":  VerbPatch,
}

// ParseVerb matches method case-insensitively against the known verbs.
// Anything else is VerbUnknown and is sent verbatim.
func ParseVerb(method string) Verb {
	if v, ok := verbNames[strings.ToUpper(method)]; ok {
		return v
	}
	return VerbUnknown
}

func (v Verb) String() string {
	for name, verb := range verbNames {
		if verb == v {
			return name
		}
	}
	return "UNKNOWN"
}

// formPayload reports whether a body is handed over as one buffer. Other
// verbs stream their body with a declared length.
func (v Verb) formPayload() bool {
	return v == VerbGet || v == VerbPost || v == VerbDelete
}

// requiresContent reports whether the verb fails without a body.
func (v Verb) requiresContent() bool {
	return v == VerbPut || v == VerbPost
}
