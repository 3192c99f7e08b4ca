// Package project holds the naming rules shared by every sitedeploy component.
//
// A project identifier is minted once per deployment request and used verbatim
// as the artifact store namespace and as the routable subdomain label, so it
// must always be a valid lowercase DNS label.
package project
