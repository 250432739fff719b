// Package contract defines the wire types exchanged between the
// protocol frontend and the mutation command Lambda.
package contract

// CommandRequest is one mailbox mutation command issued by a connected
// session. Command is one of CREATE, DELETE, RENAME, SUBSCRIBE,
// UNSUBSCRIBE.
type CommandRequest struct {
	Command    string `json:"command"`
	SessionID  string `json:"sessionId"`
	AccountID  string `json:"accountId"`
	AliasID    string `json:"aliasId"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
	Locale     string `json:"locale,omitempty"`
	Path       string `json:"path"`
	NewPath    string `json:"newPath,omitempty"`
}

// CommandResponse reports the outcome of one command. Exactly one of
// the three shapes is populated:
//   - success: OK true, MailboxID set for CREATE
//   - structured refusal: OK false, Response carries the response code
//   - internal failure: OK false, Error carries an opaque message
type CommandResponse struct {
	OK        bool   `json:"ok"`
	MailboxID string `json:"mailboxId,omitempty"`
	Response  string `json:"response,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}
