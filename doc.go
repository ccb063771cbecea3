// Package cloudfs exposes several storage providers as one virtual
// filesystem and moves data between them.
//
// Every path starts with the identifier of a backend, followed by a path
// inside that backend:
//
//	/local/home/me/photos/
//	/aws/my-bucket/2024/report.pdf
//	/az/container/blob.txt
//
// The bare root "/" lists the known backends. A trailing "/" marks a
// directory; without it the last segment names a file.
//
// # Backends
//
// Backends implement the small [Backend] capability: list one directory
// level, check existence, open a stream, and write a stream. Implementations
// live under driver/:
//
//   - Local filesystem (github.com/gobeaver/cloudfs/driver/local)
//   - Amazon S3 (github.com/gobeaver/cloudfs/driver/s3)
//   - Azure Blob Storage (github.com/gobeaver/cloudfs/driver/azure)
//   - Google Cloud Storage (github.com/gobeaver/cloudfs/driver/gcs)
//   - SFTP (github.com/gobeaver/cloudfs/driver/sftp)
//   - In-memory (github.com/gobeaver/cloudfs/driver/memory)
//
// The backends package wires them into a [Registry] with a fixed set of
// identifiers. A backend is constructed on first use and then reused:
//
//	cfg, err := cloudfs.GetConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg := backends.NewRegistry(cfg)
//	defer reg.Close()
//
// # Sessions
//
// A [Session] holds the working directory and resolves raw user paths
// against it:
//
//	s := cloudfs.NewSession(reg)
//	s.ChangeDirectory("/aws/my-bucket/")
//	target, err := s.Resolve("2024/report.pdf") // aws, /my-bucket/2024/report.pdf
//
// # Listing
//
// [List] is lazy and single-pass. With recursion it flattens a subtree in
// pre-order and names each node relative to the listed root:
//
//	for node, err := range cloudfs.List(ctx, b, "/data/", true) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(node.Name, node.IsDir)
//	}
//
// # Copy and Compare
//
// [Copy] and [Compare] run a discovery goroutine that walks the source
// while the caller's goroutine processes files in discovery order. Copy
// never overwrites an existing destination file, so rerunning it after a
// failure only transfers what is missing:
//
//	report, err := cloudfs.Copy(ctx, src, "/photos/", dst, "/backup/photos/",
//	    cloudfs.WithLogger(logger),
//	)
//
// Compare classifies each source file as source-only, different or
// identical:
//
//	for item, err := range cloudfs.Compare(ctx, src, "/a/", dst, "/b/", cloudfs.CompareOptions{Recursive: true}) {
//	    ...
//	}
//
// # Error Handling
//
// Per-file failures are reported and processing continues. A traversal
// failure surfaces as a [*DiscoveryError] after the files found before it
// were processed:
//
//	report, err := cloudfs.Copy(ctx, src, "/a/", dst, "/b/")
//	var de *cloudfs.DiscoveryError
//	if errors.As(err, &de) {
//	    fmt.Printf("partial copy: %d files discovered\n", de.Discovered)
//	}
//
// # Configuration
//
// Backend settings are loaded from environment variables with the
// BEAVER_CLOUDFS_ prefix, or set programmatically via the [Config] struct.
package cloudfs
