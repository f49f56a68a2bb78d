// Package cultural implements the cultural-context engine, which rates how
// completely a request describes its cultural setting and returns the
// normalized context with a localized greeting.
package cultural
