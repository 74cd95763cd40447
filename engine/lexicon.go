package engine

// defaultLexicon is the built-in profanity list. Mild profanity, insults and
// slurs share one list and one threshold.
//
// TODO: split into severity classes once moderation agrees on per-class thresholds.
var defaultLexicon = []string{
	"fuck", "shit", "bitch", "asshole", "damn", "hell",
	"crap", "piss", "bastard", "slut", "whore", "idiot",
	"stupid", "dumb", "moron", "retard", "gay", "faggot",
}
