// Package unzip provides a filtered, cached, read-only view over a zip archive.
//
// An [Archive] is configured with a [Source] and optional include/exclude
// [Predicate] sets, then opened for a scoped lifetime:
//
//	err := unzip.Do(ctx, unzip.FromPath("frames.zip"), unzip.Options{
//		Includes: []unzip.Predicate{unzip.MustRegex(`^renders/`)},
//	}, func(a *unzip.Archive) error {
//		names, err := a.SequenceNames("png")
//		if err != nil {
//			return err
//		}
//		_, err = a.Extract(ctx, unzip.ExtractOptions{Dest: dir, Files: names})
//		return err
//	})
//
// The member listing and the filtered name list are computed once per open and
// reused for every later call. An Archive has a single owner and no internal
// locking; open one Archive per goroutine to extract concurrently.
//
// Encrypted members use WinZip AES and are decrypted with [ExtractOptions.Password].
package unzip
