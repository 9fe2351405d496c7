package model

import "github.com/google/uuid"

// ProjectID identifies a project inside a workspace.
type ProjectID uuid.UUID

func NewProjectID() ProjectID { return ProjectID(uuid.New()) }

func (id ProjectID) String() string { return uuid.UUID(id).String() }

// DocumentID identifies a document inside a project.
type DocumentID uuid.UUID

func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

func (id DocumentID) String() string { return uuid.UUID(id).String() }
