package hcb

// SyscallDecl is one entry of the script's declared syscall table: its
// arity and its name, in the order they appear on disk (this order is also
// the ordinal used by the Syscall(u16 id) opcode).
type SyscallDecl struct {
	Name     string
	ArgCount uint8
}

// ScriptMetadata is the immutable descriptor produced by a one-shot parse of
// the script's metadata block. It is safe to share across multiple
// ScriptContexts.
type ScriptMetadata struct {
	MetadataOffset      uint32
	EntryPoint          uint32
	GlobalCount         uint16
	VolatileGlobalCount uint16
	ResolutionMode      uint16
	GameTitle           string
	Syscalls            []SyscallDecl
}

// SyscallByOrdinal returns the declaration at the given table index, as
// addressed by the Syscall(u16 id) opcode.
func (m *ScriptMetadata) SyscallByOrdinal(id uint16) (SyscallDecl, bool) {
	if int(id) >= len(m.Syscalls) {
		return SyscallDecl{}, false
	}
	return m.Syscalls[id], true
}

// CodeRegionEnd returns the exclusive end of the code region, which is
// exactly the metadata block's offset.
func (m *ScriptMetadata) CodeRegionEnd() uint32 { return m.MetadataOffset }

// ParseMetadata reads the metadata_offset pointer at offset 0, then parses
// the metadata block it points to: entry_point, global_count,
// volatile_global_count, resolution_mode, game_title, syscall_count, and the
// syscall declarations.
func ParseMetadata(r *Reader) (*ScriptMetadata, error) {
	r.SeekTo(0)
	metadataOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	r.SeekTo(metadataOffset)

	entryPoint, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	globalCount, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	volatileGlobalCount, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	resolutionMode, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	gameTitle, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	syscallCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	syscalls := make([]SyscallDecl, 0, syscallCount)
	for i := 0; i < int(syscallCount); i++ {
		argCount, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		syscalls = append(syscalls, SyscallDecl{Name: name, ArgCount: argCount})
	}

	return &ScriptMetadata{
		MetadataOffset:      metadataOffset,
		EntryPoint:          entryPoint,
		GlobalCount:         globalCount,
		VolatileGlobalCount: volatileGlobalCount,
		ResolutionMode:      resolutionMode,
		GameTitle:           gameTitle,
		Syscalls:            syscalls,
	}, nil
}
