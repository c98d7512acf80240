package memory_map

// Win32 MEMORY_BASIC_INFORMATION values.
const (
	win32MemCommit  = 0x1000
	win32MemReserve = 0x2000
	win32MemFree    = 0x10000

	win32MemPrivate = 0x20000
	win32MemMapped  = 0x40000
	win32MemImage   = 0x1000000

	win32PageNoAccess         = 0x01
	win32PageReadOnly         = 0x02
	win32PageReadWrite        = 0x04
	win32PageWriteCopy        = 0x08
	win32PageExecute          = 0x10
	win32PageExecuteRead      = 0x20
	win32PageExecuteReadWrite = 0x40
	win32PageExecuteWriteCopy = 0x80
	win32PageGuard            = 0x100
)

// FromWin32 converts the fields of a MEMORY_BASIC_INFORMATION into a MemoryRegion.
func FromWin32(base, allocationBase, size uint64, state, protect, typ uint32) MemoryRegion {
	r := MemoryRegion{
		BaseAddress:    base,
		AllocationBase: allocationBase,
		Size:           size,
		Protection:     Win32Protection(protect),
	}

	switch state {
	case win32MemCommit:
		r.State = StateCommitted
	case win32MemReserve:
		r.State = StateReserved
	default:
		r.State = StateFree
	}

	switch typ {
	case win32MemImage:
		r.Type = TypeImage
	case win32MemMapped:
		r.Type = TypeMapped
	case win32MemPrivate:
		r.Type = TypePrivate
	}

	return r
}

// Win32Protection converts a PAGE_* value into a Protection set.
func Win32Protection(protect uint32) Protection {
	var p Protection
	switch protect &^ (win32PageGuard | 0x200 | 0x400) {
	case win32PageNoAccess, 0:
		p = ProtNoAccess
	case win32PageReadOnly:
		p = ProtRead
	case win32PageReadWrite:
		p = ProtRead | ProtWrite
	case win32PageWriteCopy:
		p = ProtRead | ProtWrite | ProtCopyOnWrite
	case win32PageExecute:
		p = ProtExec
	case win32PageExecuteRead:
		p = ProtRead | ProtExec
	case win32PageExecuteReadWrite:
		p = ProtRead | ProtWrite | ProtExec
	case win32PageExecuteWriteCopy:
		p = ProtRead | ProtWrite | ProtExec | ProtCopyOnWrite
	}
	if protect&win32PageGuard != 0 {
		p |= ProtGuard
	}
	return p
}

// Win32Protect is the inverse of Win32Protection, ignoring guard and copy-on-write.
func Win32Protect(p Protection) uint32 {
	var v uint32
	switch {
	case p&ProtNoAccess != 0:
		v = win32PageNoAccess
	case p&ProtExec != 0 && p&ProtWrite != 0:
		v = win32PageExecuteReadWrite
	case p&ProtExec != 0 && p&ProtRead != 0:
		v = win32PageExecuteRead
	case p&ProtExec != 0:
		v = win32PageExecute
	case p&ProtWrite != 0:
		v = win32PageReadWrite
	case p&ProtRead != 0:
		v = win32PageReadOnly
	default:
		v = win32PageNoAccess
	}
	if p&ProtGuard != 0 {
		v |= win32PageGuard
	}
	return v
}
