package memo

// Validate checks memo text before anything is allocated. It only looks at
// the byte length: empty text fails with TextEmpty and text longer than
// MaxTextLen bytes fails with TextTooLong.
func Validate(text string) error {
	if len(text) == 0 {
		return ErrTextEmpty
	}
	if len(text) > MaxTextLen {
		return ErrTextTooLong
	}
	return nil
}
