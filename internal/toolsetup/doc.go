// Package toolsetup performs the one-time preparation that auxiliary
// services and browser drivers need before a test can use them.
//
// ReadManifest and RequireTool check the local .NET tool manifest. A Restorer
// runs the tool restore command once per directory and caches only success,
// so a failed restore is attempted again by the next caller. DriverSetup
// resolves and installs a browser driver once per browser and caches the
// outcome either way, failures included.
package toolsetup
