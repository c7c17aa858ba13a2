package gobpf

import (
	"github.com/sirupsen/logrus"

	"github.com/xyproto/gobpf/internal/xlog"
)

// ProgType names a BPF_PROG_TYPE_* kernel program kind.
type ProgType uint32

const (
	ProgTypeSocketFilter ProgType = 1
	ProgTypeKprobe       ProgType = 2
	ProgTypeTracepoint   ProgType = 5
	ProgTypeXDP          ProgType = 6
	ProgTypePerfEvent    ProgType = 7
	ProgTypeCgroupSkb    ProgType = 8
	ProgTypeCgroupSock   ProgType = 9
	ProgTypeSchedCls     ProgType = 3
	ProgTypeSchedAct     ProgType = 4
	ProgTypeRawTracepoint ProgType = 17
	ProgTypeLSM          ProgType = 29
)

// AttachType names a BPF_*_ATTACH_TYPE enumerator, required for link-based
// and cgroup-based attachment.
type AttachType uint32

const (
	AttachTraceKprobeMulti AttachType = 42
	AttachLSMMac           AttachType = 27
	AttachCgroupInetIngress AttachType = 0
	AttachCgroupInetEgress  AttachType = 1
)

// ProgSpec describes a program for BPF_PROG_LOAD.
type ProgSpec struct {
	Type               ProgType
	Name               string
	License             string
	Instructions       []Instruction
	ExpectedAttachType AttachType
	KernVersion        uint32

	// LogLevel > 0 requests a verifier log; the manager grows the log
	// buffer and retries on ENOSPC up to logGrowthLimit times.
	LogLevel uint32

	Logger xlog.Logger
}

// defaultInitialLogSize and logGrowthFactor drive the verifier-log growth
// loop: the kernel reports "buffer too small" via ENOSPC, at which point
// the caller must retry with a larger buffer since there is no way to ask
// the kernel how large the log actually is up front.
const (
	defaultInitialLogSize = 64 * 1024
	logGrowthFactor       = 4
	logGrowthLimit        = 4
)

// Prog owns a loaded BPF program's file descriptor and every Attachment
// created against it. Attachments never point back to their owning Prog —
// they reference the program only by its FD — so Prog is the sole owner of
// the list.
type Prog struct {
	fd          int
	spec        ProgSpec
	log         *logrus.Entry
	closed      bool
	attachments []*Attachment
}

// registerAttachment records a onto p's attachment list so Close can cascade
// to it later, and returns a unchanged for the Attach* constructors to
// return directly.
func (p *Prog) registerAttachment(a *Attachment) *Attachment {
	p.attachments = append(p.attachments, a)
	return a
}

// LoadProg assembles no bytecode of its own — callers pass already-resolved
// Instructions (typically the output of Assemble) — and issues BPF_PROG_LOAD,
// growing the verifier log buffer and retrying until it fits or
// logGrowthLimit is exceeded.
func LoadProg(spec ProgSpec) (*Prog, error) {
	if len(spec.Instructions) == 0 {
		return nil, &Error{Kind: KindUsageError, Op: "PROG_LOAD", Err: errUsage("no instructions")}
	}
	insnBytes := make([]byte, 0, len(spec.Instructions)*8)
	for _, in := range spec.Instructions {
		b := in.Bytes()
		insnBytes = append(insnBytes, b[:]...)
	}
	license := append([]byte(spec.License), 0)

	logSize := 0
	if spec.LogLevel > 0 {
		logSize = defaultInitialLogSize
	}

	var fd uintptr
	var err error
	var logBuf []byte
	for attempt := 0; ; attempt++ {
		if logSize > 0 {
			logBuf = make([]byte, logSize)
		}
		attr := newProgLoadAttr(progLoadSpec{
			ProgType:           uint32(spec.Type),
			Insns:              insnBytes,
			License:            spec.License,
			LogLevel:           spec.LogLevel,
			LogBuf:             logBuf,
			KernVersion:        spec.KernVersion,
			Name:               spec.Name,
			ExpectedAttachType: uint32(spec.ExpectedAttachType),
		}, license)
		fd, err = sysBPF(bpfProgLoad, &attr, bpfAttrSize)
		if err == nil {
			break
		}
		var gerr *Error
		if asError(err, &gerr) && gerr.Kind == KindResource && spec.LogLevel > 0 && attempt < logGrowthLimit {
			logSize *= logGrowthFactor
			continue
		}
		if spec.LogLevel > 0 && gerr != nil {
			if log := cString(logBuf); log != "" {
				gerr.VerifierLog = log
				gerr.Kind = KindVerifierRejection
				return nil, gerr
			}
		}
		return nil, err
	}

	p := &Prog{
		fd:   int(fd),
		spec: spec,
		log:  xlog.Default(spec.Logger).WithFields(xlog.Fields{"component": "prog", "name": spec.Name}),
	}
	if spec.LogLevel > 0 {
		p.log.WithField("verifier_log", cString(logBuf)).Debug("program loaded")
	} else {
		p.log.Debug("program loaded")
	}
	return p, nil
}

// FD returns the program's kernel file descriptor.
func (p *Prog) FD() int { return p.fd }

// Spec returns the ProgSpec this Prog was loaded with.
func (p *Prog) Spec() ProgSpec { return p.spec }

// Pin bind-mounts this program's fd at pathname under bpffs.
func (p *Prog) Pin(pathname string) error {
	pp := append([]byte(pathname), 0)
	attr := newObjAttr(pp, int32(p.fd), 0)
	_, err := sysBPF(bpfObjPin, &attr, bpfAttrSize)
	return err
}

// GetProgByPin opens a previously pinned program by its bpffs path.
func GetProgByPin(pathname string) (*Prog, error) {
	pp := append([]byte(pathname), 0)
	attr := newObjAttr(pp, 0, 0)
	fd, err := sysBPF(bpfObjGet, &attr, bpfAttrSize)
	if err != nil {
		return nil, err
	}
	return &Prog{
		fd:  int(fd),
		log: xlog.Default(nil).WithFields(xlog.Fields{"component": "prog", "pin": pathname}),
	}, nil
}

// Close drops all attachments in declared order, then releases the
// program's file descriptor. Idempotent. The first error encountered (from
// an attachment or from the fd itself) is returned, but every attachment is
// still given a chance to close.
func (p *Prog) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var first error
	for _, a := range p.attachments {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := closeFD(p.fd); err != nil && first == nil {
		first = err
	}
	return first
}

// asError is errors.As spelled locally to avoid importing "errors" into
// every file that needs this one narrow check.
func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
