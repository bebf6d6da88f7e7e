package manifest

// FileName is the name of the signed manifest member inside a package
// archive and inside each installed version's folder.
const FileName = "autoupdate.manifest"
