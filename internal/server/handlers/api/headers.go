package api

const HeaderClientID = "X-Syftsync-Client-Id"
