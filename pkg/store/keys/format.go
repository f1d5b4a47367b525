package keys

const (
	// notation dictionary for key formats:
	// t   = thread
	// s   = section
	// e   = event
	// u   = user
	// seq = id sequence of a table
	// All keys are lowercase; segments are separated by ":"
	// <...> = variable segment (e.g. <id>)

	// primary storage key format
	EntityKey = "%s:%s" // <table>:<padded id>

	// table prefixes
	ThreadTable  = "t"
	SectionTable = "s"
	EventTable   = "e"
	UserTable    = "u"

	// id sequences
	SequenceKey = "seq:%s" // seq:<table>

	// padding width (fixed for lexicographic ordering)
	IDPadWidth = 20 // e.g. %020d
)
