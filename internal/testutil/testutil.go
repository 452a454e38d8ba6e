// Package testutil provides shared test helpers for building Scrivener
// package fixtures and temporary catalog databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/scrivex/internal/catalog"
)

// ScrivPackage writes a minimal .scriv package fixture: the descriptor
// XML plus one content.rtf per UUID. It returns the package path.
func ScrivPackage(t *testing.T, name, scrivxXML string, contents map[string]string) string {
	t.Helper()

	pkg := filepath.Join(t.TempDir(), name+".scriv")
	dataDir := filepath.Join(pkg, "Files", "Data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(pkg, name+".scrivx"), []byte(scrivxXML), 0o644); err != nil {
		t.Fatal(err)
	}

	for uuid, rtf := range contents {
		dir := filepath.Join(dataDir, uuid)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "content.rtf"), []byte(rtf), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	return pkg
}

// TestCatalog creates a temporary catalog database that is automatically
// cleaned up.
func TestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "scrivex-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FixtureScrivx is a small two-level project descriptor used across
// package tests: a draft folder holding one chapter with a nested scene,
// plus research and trash folders that must never reach the output.
const FixtureScrivx = `<?xml version="1.0" encoding="UTF-8"?>
<ScrivenerProject Identifier="F00D-1234" Version="2.0" Creator="Scrivener" Device="mac" Author="A. Writer" Created="2024-01-01" Modified="2024-06-01">
    <LabelSettings>
        <Labels>
            <Label ID="1" Color="1.0 0.0 0.0">Chapter</Label>
            <Label ID="2" Color="0.0 1.0 0.0">Scene</Label>
        </Labels>
    </LabelSettings>
    <StatusSettings>
        <StatusItems>
            <Status ID="1">First Draft</Status>
            <Status ID="2">Done</Status>
        </StatusItems>
    </StatusSettings>
    <Binder>
        <BinderItem UUID="AAAA" Type="DraftFolder" Created="2024-01-01" Modified="2024-06-01">
            <Title>Act One</Title>
            <Children>
                <BinderItem UUID="BBBB" Type="Text">
                    <Title>Chapter 1</Title>
                    <MetaData>
                        <LabelID>1</LabelID>
                        <StatusID>1</StatusID>
                        <Synopsis>The beginning.</Synopsis>
                        <IncludeInCompile>Yes</IncludeInCompile>
                    </MetaData>
                    <Children>
                        <BinderItem UUID="CCCC" Type="Text">
                            <Title>Scene A</Title>
                            <MetaData>
                                <LabelID>2</LabelID>
                                <StatusID>99</StatusID>
                            </MetaData>
                        </BinderItem>
                    </Children>
                </BinderItem>
            </Children>
        </BinderItem>
        <BinderItem UUID="DDDD" Type="ResearchFolder">
            <Title>Research</Title>
        </BinderItem>
        <BinderItem UUID="EEEE" Type="TrashFolder">
            <Title>Trash</Title>
        </BinderItem>
    </Binder>
</ScrivenerProject>
`
