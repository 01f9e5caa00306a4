package reporter

import "strconv"

func parseUint(raw string, out *uint64) error {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return err
	}
	*out = v
	return nil
}
