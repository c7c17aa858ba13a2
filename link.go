package gobpf

// UpdateProg swaps the program backing a link-based Attachment without
// tearing down the attachment itself, letting a caller roll out a new
// program version with no gap in coverage. It is only valid for
// attachments created via a
// BPF_LINK_CREATE-backed helper (AttachLSM, AttachKprobeMulti).
func (a *Attachment) UpdateProg(newProg *Prog) error {
	if a.kind != attachKindLink {
		return &Error{Kind: KindUsageError, Op: "LINK_UPDATE",
			Err: errUsage("UpdateProg only applies to link-based attachments")}
	}
	// BPF_LINK_UPDATE reuses the bpf_attr.link_update layout: link_fd@0
	// new_prog_fd@4 flags@8 old_prog_fd@12.
	var attr bpfAttr
	attr.putU32(0, uint32(a.fd))
	attr.putU32(4, uint32(newProg.FD()))
	_, err := sysBPF(bpfLinkUpdate, &attr, bpfAttrSize)
	return err
}

// Pin bind-mounts a link-based attachment's fd at pathname under bpffs, the
// mechanism by which a pinned link keeps its program attached after the
// owning process exits.
func (a *Attachment) Pin(pathname string) error {
	if a.kind != attachKindLink && a.kind != attachKindRawTracepoint {
		return &Error{Kind: KindUsageError, Op: "OBJ_PIN",
			Err: errUsage("Pin only applies to link or raw-tracepoint attachments")}
	}
	p := append([]byte(pathname), 0)
	attr := newObjAttr(p, int32(a.fd), 0)
	_, err := sysBPF(bpfObjPin, &attr, bpfAttrSize)
	return err
}

// GetLinkByPin opens a previously pinned link by its bpffs path.
func GetLinkByPin(pathname string) (*Attachment, error) {
	p := append([]byte(pathname), 0)
	attr := newObjAttr(p, 0, 0)
	fd, err := sysBPF(bpfObjGet, &attr, bpfAttrSize)
	if err != nil {
		return nil, err
	}
	return &Attachment{kind: attachKindLink, fd: int(fd)}, nil
}
