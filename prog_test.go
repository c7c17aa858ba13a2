package gobpf

import (
	"os"
	"testing"

	"gotest.tools/v3/assert"
)

func TestLoadProgRejectsEmptyInstructions(t *testing.T) {
	_, err := LoadProg(ProgSpec{Type: ProgTypeSocketFilter, License: "GPL"})
	assert.ErrorContains(t, err, "no instructions")
}

func TestProgCloseIsIdempotent(t *testing.T) {
	p := &Prog{fd: -1, closed: true}
	assert.NilError(t, p.Close())
}

func TestProgCloseCascadesAttachmentsInDeclaredOrder(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NilError(t, err)
	defer r.Close()

	p := &Prog{fd: int(w.Fd())}
	a1 := &Attachment{kind: attachKindPerf, fd: -1, closed: true}
	a2 := &Attachment{kind: attachKindPerf, fd: -1, closed: true}
	p.registerAttachment(a1)
	p.registerAttachment(a2)
	assert.Equal(t, len(p.attachments), 2)

	assert.NilError(t, p.Close())
	assert.Assert(t, p.attachments[0] == a1)
	assert.Assert(t, p.attachments[1] == a2)
}

// TestLoadSimpleProgRequiresRoot loads a minimal "return 0" socket filter
// program and checks the verifier accepts it.
func TestLoadSimpleProgRequiresRoot(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root / CAP_BPF to load a BPF program")
	}
	mov, err := Mov64Imm(R0, 0)
	assert.NilError(t, err)
	exit, err := Exit()
	assert.NilError(t, err)

	p, err := LoadProg(ProgSpec{
		Type:         ProgTypeSocketFilter,
		Name:         "gobpf_test",
		License:      "GPL",
		Instructions: []Instruction{mov, exit},
	})
	assert.NilError(t, err)
	defer p.Close()
	assert.Assert(t, p.FD() >= 0)
}
