package moderation

import "embed"

// Dictionaries holds one word list per language, one word per line.
//
//go:embed censored/*.txt
var Dictionaries embed.FS

const DictionariesDir = "censored"
