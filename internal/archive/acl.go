package archive

import "strings"

// ACL tokens understood by the storage backend. Public read access is
// the pair of referrer and listing tokens; every other token has the
// form "project_id:user_id".
const (
	aclReferrerAny = ".r:*"
	aclListings    = ".rlistings"
)

// PublicAccess is the synthetic entry that AccessControl reports, and
// GrantAccess/RevokeAccess accept, for anonymous read access.
const PublicAccess = "PUBLIC"

// ACL holds the parsed access-control entries of a container.
type ACL struct {
	Read  []string
	Write []string
}

// aclTokens splits a raw comma-separated ACL header into tokens.
func aclTokens(raw string) []string {
	var tokens []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func joinACLTokens(tokens []string) string { return strings.Join(tokens, ",") }

func hasACLToken(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}

func removeACLToken(tokens []string, token string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}

// aclIsPublic reports whether the token set grants anonymous read access.
// Both tokens must be present; a stray referrer token on its own is
// reported verbatim instead.
func aclIsPublic(tokens []string) bool {
	return hasACLToken(tokens, aclReferrerAny) && hasACLToken(tokens, aclListings)
}

// parseACLEntries turns raw tokens into user-facing entries: the public
// token pair collapses to a single PUBLIC entry, and "project:user"
// tokens become the user id, translated through the users mapping when
// one is supplied (falling back to the raw id if unmapped).
func parseACLEntries(tokens []string, users map[string]string) []string {
	entries := []string{}
	if aclIsPublic(tokens) {
		entries = append(entries, PublicAccess)
		tokens = removeACLToken(tokens, aclReferrerAny)
		tokens = removeACLToken(tokens, aclListings)
	}
	for _, t := range tokens {
		// Special tokens (".r:<referrer>", ".rlistings", ...) carry no
		// user id; report them verbatim.
		if strings.HasPrefix(t, ".") {
			entries = append(entries, t)
			continue
		}
		if _, userID, ok := strings.Cut(t, ":"); ok {
			if name, known := users[userID]; known {
				entries = append(entries, name)
			} else {
				entries = append(entries, userID)
			}
			continue
		}
		entries = append(entries, t)
	}
	return entries
}
