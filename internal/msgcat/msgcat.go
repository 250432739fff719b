// Package msgcat translates structured-error message keys into
// human-readable text for the client's locale.
package msgcat

import "golang.org/x/text/language"

// Message keys attached to structured command failures.
const (
	KeyMailboxOverQuota     = "IMAP_MAILBOX_OVER_QUOTA"
	KeyMailboxMaxExceeded   = "IMAP_MAILBOX_MAX_EXCEEDED"
	KeyMailboxAlreadyExists = "IMAP_MAILBOX_ALREADY_EXISTS"
	KeyMailboxDoesNotExist  = "IMAP_MAILBOX_DOES_NOT_EXIST"
)

// supported is ordered by preference; English is the fallback.
var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.German,
	language.French,
}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[string]string{
	language.English: {
		KeyMailboxOverQuota:     "Mailbox is over quota",
		KeyMailboxMaxExceeded:   "Maximum number of mailboxes exceeded",
		KeyMailboxAlreadyExists: "Mailbox already exists",
		KeyMailboxDoesNotExist:  "Mailbox does not exist",
	},
	language.Spanish: {
		KeyMailboxOverQuota:     "El buzón ha excedido su cuota",
		KeyMailboxMaxExceeded:   "Se ha excedido el número máximo de buzones",
		KeyMailboxAlreadyExists: "El buzón ya existe",
		KeyMailboxDoesNotExist:  "El buzón no existe",
	},
	language.German: {
		KeyMailboxOverQuota:     "Postfach hat sein Kontingent überschritten",
		KeyMailboxMaxExceeded:   "Maximale Anzahl an Postfächern überschritten",
		KeyMailboxAlreadyExists: "Postfach existiert bereits",
		KeyMailboxDoesNotExist:  "Postfach existiert nicht",
	},
	language.French: {
		KeyMailboxOverQuota:     "La boîte aux lettres a dépassé son quota",
		KeyMailboxMaxExceeded:   "Nombre maximal de boîtes aux lettres dépassé",
		KeyMailboxAlreadyExists: "La boîte aux lettres existe déjà",
		KeyMailboxDoesNotExist:  "La boîte aux lettres n'existe pas",
	},
}

// Translate returns the text for key in the best match for locale
// (a BCP 47 tag such as "en" or "fr-CA"). Unknown locales fall back to
// English; unknown keys return the key itself.
func Translate(key, locale string) string {
	idx := 0
	if locale != "" {
		if _, i, conf := matcher.Match(language.Make(locale)); conf > language.No {
			idx = i
		}
	}

	if msg, ok := catalog[supported[idx]][key]; ok {
		return msg
	}
	if msg, ok := catalog[language.English][key]; ok {
		return msg
	}
	return key
}
