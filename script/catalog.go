// SPDX-License-Identifier: GPL-3.0-or-later
package script

import (
	"github.com/CrawX/go-mxctl/decode"
)

const (
	ListAccounts    = "list-accounts"
	ListMailboxes   = "list-mailboxes"
	ListMessages    = "list-messages"
	CountMessages   = "count-messages"
	MailboxStats    = "mailbox-stats"
	MessageState    = "message-state"
	MessageHeaders  = "message-headers"
	ListAttachments = "list-attachments"
	SaveAttachment  = "save-attachment"
	SetProperty     = "set-property"
	MoveMessage     = "move-message"
	DeleteMessage   = "delete-message"
	RestoreMessage  = "restore-message"
)

// VocabMailbox names the allow-list of mailbox names.
const VocabMailbox = "mailbox"

// Message properties set-property can toggle.
const (
	PropertyRead    = "read status"
	PropertyFlagged = "flagged status"
	PropertyJunk    = "junk mail status"
)

// Mutation scripts answer with one of these.
const (
	StatusChanged   = "changed"
	StatusUnchanged = "unchanged"
)

// DefaultMailboxes are the names Mail uses for its standard mailboxes.
var DefaultMailboxes = []string{
	"INBOX",
	"Archive",
	"Junk",
	"Trash",
	"Deleted Messages",
	"Sent Messages",
	"Drafts",
}

var (
	AccountSchema = decode.Schema{
		{Name: "name", Type: decode.String},
		{Name: "enabled", Type: decode.Bool},
		{Name: "email", Type: decode.String},
	}
	MailboxSchema = decode.Schema{
		{Name: "name", Type: decode.String},
		{Name: "unread", Type: decode.Int},
	}
	MessageSchema = decode.Schema{
		{Name: "id", Type: decode.Int},
		{Name: "subject", Type: decode.String},
		{Name: "sender", Type: decode.String},
		{Name: "date", Type: decode.Time},
		{Name: "read", Type: decode.Bool},
		{Name: "flagged", Type: decode.Bool},
	}
	CountSchema = decode.Schema{
		{Name: "total", Type: decode.Int},
	}
	StatsSchema = decode.Schema{
		{Name: "total", Type: decode.Int},
		{Name: "unread", Type: decode.Int},
	}
	StateSchema = decode.Schema{
		{Name: "id", Type: decode.Int},
		{Name: "mailbox", Type: decode.String},
		{Name: "read", Type: decode.Bool},
		{Name: "flagged", Type: decode.Bool},
		{Name: "junk", Type: decode.Bool},
		{Name: "messageId", Type: decode.String},
		{Name: "subject", Type: decode.String},
		{Name: "sender", Type: decode.String},
	}
	HeadersSchema = decode.Schema{
		{Name: "headers", Type: decode.String},
	}
	AttachmentSchema = decode.Schema{
		{Name: "name", Type: decode.String},
		{Name: "mimeType", Type: decode.String},
		{Name: "size", Type: decode.Int},
		{Name: "downloaded", Type: decode.Bool},
	}
	SavedSchema = decode.Schema{
		{Name: "path", Type: decode.String},
	}
	StatusSchema = decode.Schema{
		{Name: "status", Type: decode.String},
	}
)

func account() Placeholder {
	return Placeholder{Name: "account", Type: String}
}

func mailbox(name string) Placeholder {
	return Placeholder{Name: name, Type: Enum, Vocabulary: VocabMailbox}
}

func messageID() Placeholder {
	return Placeholder{Name: "id", Type: Int, Min: 1}
}

// locator is the numeric id of templates that can also find a message by its
// Message-ID header. Zero means unknown.
func locator() Placeholder {
	return Placeholder{Name: "id", Type: Int, Optional: true}
}

func optionalString(name string) Placeholder {
	return Placeholder{Name: name, Type: String, Optional: true}
}

// Catalog returns every script the tool knows. Scans never iterate over more
// than scanCap messages; filters are evaluated inside Mail.
func Catalog(scanCap int) []Template {
	limit := Placeholder{Name: "limit", Type: Int, Min: 1, Max: int64(scanCap)}

	return []Template{
		{
			Name:   ListAccounts,
			Class:  ClassSingle,
			Schema: AccountSchema,
			Body: header + `tell application "Mail"
	set n to count of accounts
	repeat with i from 1 to n
		set a to account i
		set addrs to email addresses of a
		set addr to ""
		if (count of addrs) > 0 then set addr to item 1 of addrs
		set out to out & my txt(name of a) & FS & (enabled of a as string) & FS & my txt(addr) & RS
	end repeat
end tell
return out
` + helpers,
		},
		{
			Name:         ListMailboxes,
			Class:        ClassSingle,
			Placeholders: []Placeholder{account()},
			Schema:       MailboxSchema,
			Body: `set pAccount to {{.account}}
` + header + `tell application "Mail"
	set mbs to every mailbox of account pAccount
	repeat with i from 1 to count of mbs
		set mb to item i of mbs
		set out to out & my txt(name of mb) & FS & (unread count of mb) & RS
	end repeat
end tell
return out
` + helpers,
		},
		{
			Name:  ListMessages,
			Class: ClassScan,
			Placeholders: []Placeholder{
				account(),
				mailbox("mailbox"),
				limit,
				{Name: "unreadOnly", Type: Bool, Optional: true},
				optionalString("sender"),
			},
			Schema: MessageSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pLimit to {{.limit}}
set pUnreadOnly to {{.unreadOnly}}
set pSender to {{.sender}}
` + header + selectMessages + `set n to total
if n > pLimit then set n to pLimit
tell application "Mail"
	repeat with i from 1 to n
		if ms is missing value then
			set m to message i of mb
		else
			set m to item i of ms
		end if
		set out to out & (id of m) & FS & my txt(subject of m) & FS & my txt(sender of m) & FS & my isoDate(date received of m) & FS & (read status of m as string) & FS & (flagged status of m as string) & RS
	end repeat
end tell
return out
` + helpers,
		},
		{
			Name:  CountMessages,
			Class: ClassScan,
			Placeholders: []Placeholder{
				account(),
				mailbox("mailbox"),
				{Name: "unreadOnly", Type: Bool, Optional: true},
				optionalString("sender"),
			},
			Schema: CountSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pUnreadOnly to {{.unreadOnly}}
set pSender to {{.sender}}
` + header + selectMessages + `return (total as string) & RS
` + helpers,
		},
		{
			Name:         MailboxStats,
			Class:        ClassSingle,
			Placeholders: []Placeholder{account(), mailbox("mailbox")},
			Schema:       StatsSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
` + header + `tell application "Mail"
	set mb to mailbox pMailbox of account pAccount
	set out to (count of messages of mb) & FS & (unread count of mb) & RS
end tell
return out as string
` + helpers,
		},
		{
			Name:  MessageState,
			Class: ClassSingle,
			Placeholders: []Placeholder{
				account(),
				mailbox("mailbox"),
				locator(),
				optionalString("messageId"),
				optionalString("fallback"),
			},
			Schema: StateSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pID to {{.id}}
set pMessageID to {{.messageId}}
set pFallback to {{.fallback}}
` + header + `set m to my findMessage(pAccount, pMailbox, pID, pMessageID)
if m is missing value and pFallback is not "" then set m to my findMessage(pAccount, pFallback, pID, pMessageID)
if m is missing value then error "Can’t get message " & pID & "." number -1728
tell application "Mail"
	set out to (id of m) & FS & my txt(name of mailbox of m) & FS & (read status of m as string) & FS & (flagged status of m as string) & FS & (junk mail status of m as string) & FS & my txt(message id of m) & FS & my txt(subject of m) & FS & my txt(sender of m) & RS
end tell
return out as string
` + helpers + finder,
		},
		{
			Name:         MessageHeaders,
			Class:        ClassSingle,
			Placeholders: []Placeholder{account(), mailbox("mailbox"), messageID()},
			Schema:       HeadersSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pID to {{.id}}
` + header + `set m to my findMessage(pAccount, pMailbox, pID, "")
if m is missing value then error "Can’t get message " & pID & "." number -1728
tell application "Mail"
	set out to my txt(all headers of m) & RS
end tell
return out
` + helpers + finder,
		},
		{
			Name:         ListAttachments,
			Class:        ClassSingle,
			Placeholders: []Placeholder{account(), mailbox("mailbox"), messageID()},
			Schema:       AttachmentSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pID to {{.id}}
` + header + `set m to my findMessage(pAccount, pMailbox, pID, "")
if m is missing value then error "Can’t get message " & pID & "." number -1728
tell application "Mail"
	set atts to mail attachments of m
	repeat with i from 1 to count of atts
		set a to item i of atts
		set out to out & my txt(name of a) & FS & my txt(MIME type of a) & FS & (file size of a) & FS & (downloaded of a as string) & RS
	end repeat
end tell
return out
` + helpers + finder,
		},
		{
			Name:  SaveAttachment,
			Class: ClassSingle,
			Placeholders: []Placeholder{
				account(),
				mailbox("mailbox"),
				messageID(),
				{Name: "name", Type: String},
				{Name: "path", Type: Path},
			},
			Schema: SavedSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pID to {{.id}}
set pName to {{.name}}
set pPath to {{.path}}
` + header + `set m to my findMessage(pAccount, pMailbox, pID, "")
if m is missing value then error "Can’t get message " & pID & "." number -1728
tell application "Mail"
	set atts to mail attachments of m
	set saved to false
	repeat with i from 1 to count of atts
		set a to item i of atts
		if (name of a) is pName then
			save a in (POSIX file pPath)
			set saved to true
			exit repeat
		end if
	end repeat
end tell
if not saved then error "Can’t get attachment " & pName & "." number -1728
return my txt(pPath) & RS
` + helpers + finder,
		},
		{
			Name:     SetProperty,
			Class:    ClassSingle,
			Mutating: true,
			Placeholders: []Placeholder{
				account(),
				mailbox("mailbox"),
				locator(),
				optionalString("messageId"),
				{Name: "property", Type: Enum, Allowed: []string{PropertyRead, PropertyFlagged, PropertyJunk}},
				{Name: "value", Type: Bool},
			},
			Schema: StatusSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pID to {{.id}}
set pMessageID to {{.messageId}}
set pProperty to {{.property}}
set pValue to {{.value}}
` + header + `set m to my findMessage(pAccount, pMailbox, pID, pMessageID)
if m is missing value then error "Can’t get message " & pID & "." number -1728
tell application "Mail"
	if pProperty is "read status" then
		if (read status of m) is pValue then return "unchanged"
		set read status of m to pValue
	else if pProperty is "flagged status" then
		if (flagged status of m) is pValue then return "unchanged"
		set flagged status of m to pValue
	else if pProperty is "junk mail status" then
		if (junk mail status of m) is pValue then return "unchanged"
		set junk mail status of m to pValue
	end if
end tell
return "changed"
` + helpers + finder,
		},
		{
			Name:     MoveMessage,
			Class:    ClassSingle,
			Mutating: true,
			Placeholders: []Placeholder{
				account(),
				mailbox("mailbox"),
				locator(),
				optionalString("messageId"),
				mailbox("destination"),
			},
			Schema: StatusSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pID to {{.id}}
set pMessageID to {{.messageId}}
set pDestination to {{.destination}}
` + header + `if pMailbox is pDestination then return "unchanged"
set m to my findMessage(pAccount, pMailbox, pID, pMessageID)
if m is missing value then
	if pMessageID is not "" and my findMessage(pAccount, pDestination, 0, pMessageID) is not missing value then return "unchanged"
	error "Can’t get message " & pID & "." number -1728
end if
tell application "Mail"
	move m to mailbox pDestination of account pAccount
end tell
return "changed"
` + helpers + finder,
		},
		{
			Name:     DeleteMessage,
			Class:    ClassSingle,
			Mutating: true,
			Placeholders: []Placeholder{
				account(),
				mailbox("mailbox"),
				locator(),
				optionalString("messageId"),
				optionalString("trash"),
			},
			Schema: StatusSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pID to {{.id}}
set pMessageID to {{.messageId}}
set pTrash to {{.trash}}
` + header + `set m to my findMessage(pAccount, pMailbox, pID, pMessageID)
if m is missing value then
	if pTrash is not "" and pMessageID is not "" and my findMessage(pAccount, pTrash, 0, pMessageID) is not missing value then return "unchanged"
	error "Can’t get message " & pID & "." number -1728
end if
tell application "Mail"
	delete m
end tell
return "changed"
` + helpers + finder,
		},
		{
			Name:     RestoreMessage,
			Class:    ClassSingle,
			Mutating: true,
			Placeholders: []Placeholder{
				account(),
				mailbox("mailbox"),
				locator(),
				{Name: "messageId", Type: String},
				mailbox("destination"),
			},
			Schema: StatusSchema,
			Body: `set pAccount to {{.account}}
set pMailbox to {{.mailbox}}
set pID to {{.id}}
set pMessageID to {{.messageId}}
set pDestination to {{.destination}}
` + header + `set m to my findMessage(pAccount, pMailbox, pID, pMessageID)
if m is missing value then
	if my findMessage(pAccount, pDestination, 0, pMessageID) is not missing value then return "unchanged"
	error "Can’t get message " & pMessageID & " in " & pMailbox & "." number -1728
end if
tell application "Mail"
	move m to mailbox pDestination of account pAccount
end tell
return "changed"
` + helpers + finder,
		},
	}
}

const header = `set RS to character id 30
set FS to character id 31
set out to ""
`

// selectMessages sets ms to the messages of mb matching the filters, letting
// Mail evaluate them, and total to their count. Without filters ms is missing
// value and messages are addressed by index.
const selectMessages = `tell application "Mail"
	set mb to mailbox pMailbox of account pAccount
	if pUnreadOnly and pSender is not "" then
		set ms to (every message of mb whose read status is false and sender contains pSender)
	else if pUnreadOnly then
		set ms to (every message of mb whose read status is false)
	else if pSender is not "" then
		set ms to (every message of mb whose sender contains pSender)
	else
		set ms to missing value
	end if
	if ms is missing value then
		set total to count of messages of mb
	else
		set total to count of ms
	end if
end tell
`

// txt replaces the record and field separators in text coming from Mail, so
// subjects and sender names cannot forge records or shift fields.
const helpers = `
on txt(v)
	if v is missing value then return ""
	set s to v as string
	set tids to AppleScript's text item delimiters
	set AppleScript's text item delimiters to {character id 30, character id 31}
	set parts to text items of s
	set AppleScript's text item delimiters to " "
	set s to parts as string
	set AppleScript's text item delimiters to tids
	return s
end txt

on isoDate(d)
	if d is missing value then return ""
	return (d as «class isot» as string)
end isoDate
`

// findMessage looks a message up by numeric id first and by Message-ID header
// second, since Mail may reassign ids when messages change mailboxes.
const finder = `
on findMessage(acct, mbName, msgId, msgHeaderId)
	tell application "Mail"
		try
			set mb to mailbox mbName of account acct
		on error
			return missing value
		end try
		if msgId > 0 then
			try
				return first message of mb whose id is msgId
			end try
		end if
		if msgHeaderId is not "" then
			try
				return first message of mb whose message id is msgHeaderId
			end try
		end if
	end tell
	return missing value
end findMessage
`
