package keys

import (
	"fmt"

	"enceladus/pkg/models"
)

// TableFor maps an entity kind to its key prefix.
func TableFor(kind models.Kind) (string, error) {
	switch kind {
	case models.KindThread:
		return ThreadTable, nil
	case models.KindSection:
		return SectionTable, nil
	case models.KindEvent:
		return EventTable, nil
	case models.KindUser:
		return UserTable, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", kind)
}

func PadID(id int64) string {
	return fmt.Sprintf("%0*d", IDPadWidth, id)
}

func GenEntityKey(table string, id int64) string {
	return fmt.Sprintf(EntityKey, table, PadID(id))
}

// GenTablePrefix returns the prefix shared by every row of table.
func GenTablePrefix(table string) string {
	return table + ":"
}

func GenSequenceKey(table string) string {
	return fmt.Sprintf(SequenceKey, table)
}
