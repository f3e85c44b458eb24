package api

// Version is the driver version, asserted against needs-version
// constraints in configuration files.
const Version = "1.2.0"
