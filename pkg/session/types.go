// Package session defines the domain types shared by the relational store,
// the graph store, and the HTTP façade. It carries no persistence logic of
// its own.
package session

import "time"

// Language is the three-way tag every scoped record carries.
type Language string

const (
	LanguageArabic  Language = "ar"
	LanguageEnglish Language = "en"
	LanguageMixed   Language = "mixed"
)

// Merge implements the language-monotonicity rule: a node inherits its
// originating chunk's language, and becomes mixed only when merged with a
// chunk of a differing language.
func (l Language) Merge(other Language) Language {
	if l == "" {
		return other
	}
	if other == "" {
		return l
	}
	if l == other {
		return l
	}
	return LanguageMixed
}

// Session is a conversation scope.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageRole distinguishes user turns from assistant turns.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one append-only turn in a session's history.
type Message struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	TokenCount  int         `json:"token_count"`
	Truncated   bool        `json:"truncated,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Upload is an immutable record of one file intake event.
type Upload struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	FileName  string    `json:"file_name"`
	ByteSize  int64     `json:"byte_size"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentChunk is a window of extracted PDF text with its embedding.
type DocumentChunk struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	SourceFile string    `json:"source_file"`
	Page       int       `json:"page"`
	Offset     int       `json:"offset"`
	Content    string    `json:"content"`
	Language   Language  `json:"language"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Entity is an extracted named thing, upserted keyed by (session_id,
// normalised name).
type Entity struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Name        string    `json:"name"`
	EntityType  string    `json:"entity_type"`
	Description string    `json:"description"`
	Language    Language  `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
}

// Fact is a standalone assertion extracted from a chunk.
type Fact struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Content    string    `json:"content"`
	FactType   string    `json:"fact_type"`
	Confidence float64   `json:"confidence"`
	Language   Language  `json:"language"`
	CreatedAt  time.Time `json:"created_at"`
}

// LegalConcept is a term/definition pair.
type LegalConcept struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Term       string    `json:"term"`
	Definition string    `json:"definition"`
	Category   string    `json:"category"`
	Language   Language  `json:"language"`
	CreatedAt  time.Time `json:"created_at"`
}

// Case is a case reference.
type Case struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	CaseNumber   string    `json:"case_number"`
	CaseName     string    `json:"case_name"`
	Court        string    `json:"court,omitempty"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Status       string    `json:"status,omitempty"`
	Language     Language  `json:"language"`
	CreatedAt    time.Time `json:"created_at"`
}

// Document is a document-level record, one per Upload.
type Document struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	DocumentType string    `json:"document_type"`
	FileSize     int64     `json:"file_size"`
	UploadDate   time.Time `json:"upload_date"`
	Language     Language  `json:"language"`
}

// RelationshipType enumerates the six typed directed edges the graph
// store carries between nodes.
type RelationshipType string

const (
	RelAbout     RelationshipType = "ABOUT"      // Fact -> Entity
	RelContains  RelationshipType = "CONTAINS"   // Document -> Fact
	RelMentions  RelationshipType = "MENTIONS"   // Document -> Entity
	RelRelatedTo RelationshipType = "RELATED_TO" // Entity<->Entity, LegalConcept<->LegalConcept
	RelAppliesTo RelationshipType = "APPLIES_TO" // LegalConcept -> Entity
	RelInvolves  RelationshipType = "INVOLVES"   // Case -> Entity
)

// Relationship is a typed directed edge; Language is the language of the
// source side at write time (open question (b) in DESIGN.md).
type Relationship struct {
	SessionID string           `json:"session_id"`
	Type      RelationshipType `json:"type"`
	SrcLabel  string           `json:"src_label"`
	SrcID     string           `json:"src_id"`
	DstLabel  string           `json:"dst_label"`
	DstID     string           `json:"dst_id"`
	Language  Language         `json:"language"`
}
